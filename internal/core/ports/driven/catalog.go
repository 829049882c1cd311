package driven

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// CatalogClient reads the remote catalog.
//
// Implementations enforce the catalog's rate ceiling and retry transient
// failures internally; callers never throttle or retry themselves.
// Errors are classified with domain.ErrFatalFetch, domain.ErrTransientFetch
// (retries exhausted) and domain.ErrNotFound.
type CatalogClient interface {
	// ListPage returns one page of the enumeration.
	// An empty cursor requests the first page; otherwise cursor must be a
	// NextCursor previously returned.
	ListPage(ctx context.Context, cursor string) (*domain.Page, error)

	// FetchDetail returns the full payload for one record.
	// Returns domain.ErrNotFound when the catalog no longer has it.
	FetchDetail(ctx context.Context, id string) (*domain.DetailRecord, error)
}
