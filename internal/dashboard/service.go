// Package dashboard implements the user actions of the payables dashboard:
// load postings for a date window, filter them, and export the result.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/export"
	"github.com/dvloznov/payables-dashboard/internal/filter"
	"github.com/dvloznov/payables-dashboard/internal/jobs"
	"github.com/dvloznov/payables-dashboard/internal/logger"
	"github.com/dvloznov/payables-dashboard/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrDateRangeRequired means a load was requested before any date window was chosen.
	ErrDateRangeRequired = errors.New("date range required")

	// ErrArchiveDisabled means no archive bucket is configured.
	ErrArchiveDisabled = errors.New("export archive not configured")
)

// Options configures a Service.
type Options struct {
	// Filename is the download name of exports.
	Filename string
	// Sheet is the worksheet name of exports.
	Sheet string
	// Archiver and Jobs are optional; ArchiveExport is disabled unless both
	// are set.
	Archiver Archiver
	Jobs     jobs.Publisher
}

const archiveMaxRetries = 3

// Service runs dashboard actions against per-session state.
type Service struct {
	source     Source
	sessions   *session.Registry
	serializer *export.Serializer
	archiver   Archiver
	jobs       jobs.Publisher
	filename   string
	log        zerolog.Logger
}

// NewService creates a dashboard service.
func NewService(source Source, sessions *session.Registry, opts Options, log zerolog.Logger) *Service {
	if opts.Filename == "" {
		opts.Filename = export.DefaultFilename
	}
	return &Service{
		source:     source,
		sessions:   sessions,
		serializer: export.NewSerializer(opts.Sheet),
		archiver:   opts.Archiver,
		jobs:       opts.Jobs,
		filename:   opts.Filename,
		log:        log,
	}
}

// logger returns the request-scoped logger carried by ctx, or the service
// logger outside a request.
func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	l := logger.FromContext(ctx, s.log)
	return &l
}

// Sessions returns the registry backing the service.
func (s *Service) Sessions() *session.Registry {
	return s.sessions
}

// NewSession starts an empty session.
func (s *Service) NewSession(ctx context.Context) *session.Session {
	sess := s.sessions.Create()
	s.logger(ctx).Info().Str("session_id", sess.ID).Msg("Session started")
	return sess
}

// EndSession destroys a session and its state.
func (s *Service) EndSession(ctx context.Context, id string) error {
	if err := s.sessions.Destroy(id); err != nil {
		return fmt.Errorf("EndSession: %w", err)
	}
	s.logger(ctx).Info().Str("session_id", id).Msg("Session ended")
	return nil
}

// SetDateRange stores the window used by the next Load.
func (s *Service) SetDateRange(ctx context.Context, id string, r domain.DateRange) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return fmt.Errorf("SetDateRange: %w", err)
	}
	return sess.Do(func(st *session.State) error {
		st.SetDateRange(r)
		return nil
	})
}

// Load fetches postings for r, or for the session's stored window when r is
// nil, and replaces the session's full dataset. A failed fetch leaves the
// session exactly as it was.
func (s *Service) Load(ctx context.Context, id string, r *domain.DateRange) (int, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return 0, fmt.Errorf("Load: %w", err)
	}

	var loaded int
	err = sess.Do(func(st *session.State) error {
		rng := st.DateRange()
		if r != nil {
			rng = *r
		}
		if rng.IsZero() {
			return ErrDateRangeRequired
		}

		start := time.Now()
		ds, err := s.source.FetchInvoices(ctx, rng)
		if err != nil {
			return err
		}

		st.SetDateRange(rng)
		st.SetFullDataset(ds)
		loaded = ds.Len()

		s.logger(ctx).Info().
			Str("session_id", id).
			Str("start_date", rng.Start.String()).
			Str("end_date", rng.End.String()).
			Int("rows", loaded).
			Dur("duration", time.Since(start)).
			Msg("Invoice postings loaded")
		return nil
	})
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("session_id", id).Msg("Load failed")
		return 0, fmt.Errorf("Load: %w", err)
	}
	return loaded, nil
}

// Filter stores sel as the session's selection and recomputes the filtered
// dataset. It returns the number of rows of the effective dataset.
func (s *Service) Filter(ctx context.Context, id string, sel domain.Selection) (int, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return 0, fmt.Errorf("Filter: %w", err)
	}

	var (
		matched   int
		effective int
	)
	err = sess.Do(func(st *session.State) error {
		if !st.HasData() {
			return domain.ErrNoData
		}
		if err := st.SetFilterSelection(sel); err != nil {
			return err
		}
		if err := st.RecomputeFiltered(); err != nil {
			return err
		}
		matched = st.FilteredDataset().Len()
		effective = st.EffectiveDataset().Len()
		return nil
	})
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("session_id", id).Msg("Filter failed")
		return 0, fmt.Errorf("Filter: %w", err)
	}

	s.logger(ctx).Info().
		Str("session_id", id).
		Strs("columns", sel.Active()).
		Int("matched", matched).
		Int("rows", effective).
		Msg("Filter applied")
	return effective, nil
}

// Download is an encoded export ready to be offered to the user.
type Download struct {
	Filename    string
	Sheet       string
	ContentType string
	Data        []byte
	Rows        int
}

// Export encodes the session's effective dataset as a workbook.
func (s *Service) Export(ctx context.Context, id string) (*Download, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}

	var dl *Download
	err = sess.Do(func(st *session.State) error {
		if !st.HasData() {
			return domain.ErrNoData
		}
		ds := st.EffectiveDataset()
		data, err := s.serializer.Serialize(ds)
		if err != nil {
			return err
		}
		dl = &Download{
			Filename:    s.filename,
			Sheet:       s.serializer.Sheet(),
			ContentType: export.ContentType,
			Data:        data,
			Rows:        ds.Len(),
		}
		return nil
	})
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("session_id", id).Msg("Export failed")
		return nil, fmt.Errorf("Export: %w", err)
	}

	s.logger(ctx).Info().
		Str("session_id", id).
		Int("rows", dl.Rows).
		Int("bytes", len(dl.Data)).
		Msg("Export generated")
	return dl, nil
}

// ArchiveExport exports the effective dataset and queues an upload of the
// workbook. The returned job is a snapshot taken at enqueue time.
func (s *Service) ArchiveExport(ctx context.Context, id string) (*jobs.ArchiveJob, error) {
	if s.archiver == nil || s.jobs == nil {
		return nil, fmt.Errorf("ArchiveExport: %w", ErrArchiveDisabled)
	}

	dl, err := s.Export(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ArchiveExport: %w", err)
	}

	job := &jobs.ArchiveJob{
		JobID:       uuid.NewString(),
		SessionID:   id,
		Filename:    dl.Filename,
		ContentType: dl.ContentType,
		Rows:        dl.Rows,
		Data:        dl.Data,
		Status:      jobs.JobStatusPending,
		CreatedAt:   time.Now(),
		MaxRetries:  archiveMaxRetries,
	}
	snapshot := *job
	snapshot.Data = nil

	if err := s.jobs.PublishArchive(ctx, job); err != nil {
		s.logger(ctx).Error().Err(err).Str("session_id", id).Msg("Failed to queue archive")
		return nil, fmt.Errorf("ArchiveExport: publish: %w", err)
	}

	s.logger(ctx).Info().Str("session_id", id).Str("job_id", snapshot.JobID).Msg("Archive queued")
	return &snapshot, nil
}

// HandleJob is the jobs.JobHandler that uploads queued archive jobs.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	archiveJob, ok := job.(*jobs.ArchiveJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type: %T", job)
	}
	if s.archiver == nil {
		return fmt.Errorf("HandleJob: %w", ErrArchiveDisabled)
	}

	uri, err := s.archiver.Archive(ctx, archiveJob.Filename, archiveJob.ContentType, archiveJob.Data)
	if err != nil {
		s.logger(ctx).Error().
			Err(err).
			Str("job_id", archiveJob.JobID).
			Int("retry_count", archiveJob.RetryCount).
			Msg("Archive upload failed")
		return fmt.Errorf("HandleJob: %w", err)
	}
	archiveJob.GCSURI = uri

	s.logger(ctx).Info().
		Str("job_id", archiveJob.JobID).
		Str("session_id", archiveJob.SessionID).
		Str("gcs_uri", uri).
		Msg("Export archived")
	return nil
}

// Summary aggregates the effective dataset for the total card.
type Summary struct {
	Rows           int             `json:"rows"`
	Total          decimal.Decimal `json:"total"`
	TotalFormatted string          `json:"total_formatted"`
}

// View is everything the presentation layer needs to draw a session.
type View struct {
	SessionID string              `json:"session_id"`
	DateRange domain.DateRange    `json:"date_range"`
	HasData   bool                `json:"has_data"`
	Filtered  bool                `json:"filtered"`
	Selection domain.Selection    `json:"selection"`
	Options   map[string][]string `json:"options"`
	Dataset   *domain.Dataset     `json:"-"` // a copy, safe to use after View returns
	Summary   Summary             `json:"summary"`
}

// View snapshots the session for rendering.
func (s *Service) View(ctx context.Context, id string) (*View, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("View: %w", err)
	}

	v := &View{SessionID: id}
	err = sess.Do(func(st *session.State) error {
		ds := st.EffectiveDataset()
		total := ds.Total()

		v.DateRange = st.DateRange()
		v.HasData = st.HasData()
		v.Filtered = !st.FilteredDataset().IsEmpty()
		v.Selection = st.Selection()
		v.Options = filter.AllOptions(st.FullDataset())
		v.Dataset = ds.Clone()
		v.Summary = Summary{
			Rows:           ds.Len(),
			Total:          total,
			TotalFormatted: FormatAmount(total),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("View: %w", err)
	}
	return v, nil
}
