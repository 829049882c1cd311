package driving

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// CatalogSync reconciles the local record store against the remote catalog.
type CatalogSync interface {
	// Sync runs one synchronisation to completion.
	//
	// The returned run carries counts and record-scoped errors; a non-empty
	// error list does not mean the run failed. A non-nil error means the run
	// aborted (phase Failed); the partial run is still returned when one was
	// started. Cancelling ctx stops the run early without an error.
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncRun, error)

	// Status returns a snapshot of the run in progress, or of the most
	// recent run. Returns nil if nothing has run yet.
	Status() *domain.SyncRun
}
