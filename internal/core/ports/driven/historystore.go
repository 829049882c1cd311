package driven

import (
	"context"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// HistoryStore keeps the results of scheduled runs.
type HistoryStore interface {
	// RecordRun logs a run result.
	RecordRun(ctx context.Context, rec domain.RunRecord) error

	// ListRuns returns recent runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// PruneRuns keeps the most recent 'keep' runs and deletes the rest.
	PruneRuns(ctx context.Context, keep int) error
}
