package driven

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// Notifier delivers a run summary to an external endpoint.
// It is used by callers of the engine after a run completes; the engine
// itself never notifies.
type Notifier interface {
	Notify(ctx context.Context, run *domain.SyncRun) error
}
