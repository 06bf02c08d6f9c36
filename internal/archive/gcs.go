// Package archive keeps copies of exported workbooks in Cloud Storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSArchive uploads exports under exports/YYYY/MM/DD/ in a bucket.
// It assumes Application Default Credentials are configured.
type GCSArchive struct {
	bucket string
	now    func() time.Time
	newID  func() string
}

// NewGCSArchive creates an archive writing to bucket.
func NewGCSArchive(bucket string) *GCSArchive {
	return &GCSArchive{
		bucket: bucket,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Archive stores data and returns its gs:// URI.
func (a *GCSArchive) Archive(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	object := ObjectName(a.now(), a.newID(), filename)
	if err := UploadBytes(ctx, a.bucket, object, contentType, data); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}

// ObjectName builds the object path for an export made at t.
func ObjectName(t time.Time, id, filename string) string {
	return fmt.Sprintf("exports/%s/%s-%s", t.Format("2006/01/02"), id, path.Base(filename))
}

// UploadBytes writes data to bucket/object.
func UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy export to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}
