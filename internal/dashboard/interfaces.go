package dashboard

import (
	"context"

	"github.com/dvloznov/payables-dashboard/internal/domain"
)

// Source loads invoice postings for a payment-date window. Implementations
// make a single attempt per call and report failures as domain.ErrDataUnavailable.
//
//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks -source=interfaces.go
type Source interface {
	FetchInvoices(ctx context.Context, r domain.DateRange) (*domain.Dataset, error)
}

// Archiver keeps a copy of an exported workbook and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, filename, contentType string, data []byte) (string, error)
}
