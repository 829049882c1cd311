package driving

import "context"

// Scheduler runs incremental syncs on an interval.
type Scheduler interface {
	// Start runs scheduled syncs.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler, waiting for a run in progress.
	Stop() error
}
