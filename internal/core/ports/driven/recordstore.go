package driven

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// RecordStore persists reconciled records keyed by remote identifier.
//
// Every write is idempotent: applying the same RemoteRecord or DetailRecord
// twice leaves the store exactly as after the first application.
// A single UpsertSummary or MergeDetail call is atomic.
type RecordStore interface {
	// Get retrieves a record by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.LocalRecord, error)

	// GetMany returns the records that exist among ids, keyed by ID.
	GetMany(ctx context.Context, ids []string) (map[string]domain.LocalRecord, error)

	// UpsertSummary creates the record or refreshes its summary fields.
	// Detail fields are never touched.
	UpsertSummary(ctx context.Context, rec domain.RemoteRecord) (created bool, err error)

	// MergeDetail stores the detail payload and marks the record as having detail.
	// Returns domain.ErrNotFound if the record was never created.
	MergeDetail(ctx context.Context, id string, detail domain.DetailRecord) error

	// List returns records ordered by ID.
	List(ctx context.Context, filter domain.RecordFilter) ([]domain.LocalRecord, error)

	// Stats summarises the store.
	Stats(ctx context.Context) (domain.RecordStats, error)
}
