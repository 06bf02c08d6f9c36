package domain

import "errors"

var (
	// ErrDataUnavailable means the remote fetch failed: network error,
	// non-success status or a malformed response.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSerializationFailure means a dataset could not be encoded as a spreadsheet.
	ErrSerializationFailure = errors.New("serialization failure")

	// ErrInvalidSelection means a filter references a column outside the dataset schema.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrSessionNotFound means the session id is unknown or already destroyed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoData means the action needs a loaded dataset and none exists yet.
	ErrNoData = errors.New("no data loaded")
)
