package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs incremental syncs on a fixed interval and keeps a history
// of their results. It is a caller of the engine: it owns the completion
// notification the engine itself never sends.
type Scheduler struct {
	interval time.Duration
	syncer   driving.CatalogSync
	history  driven.HistoryStore
	notifier driven.Notifier
	keep     int
	onRun    func(domain.RunRecord)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithNotifier sends a summary after every scheduled run.
func WithNotifier(n driven.Notifier) SchedulerOption {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithHistoryLimit sets how many run records are kept.
func WithHistoryLimit(keep int) SchedulerOption {
	return func(s *Scheduler) {
		if keep > 0 {
			s.keep = keep
		}
	}
}

// WithRunHook registers a function called after each run is recorded.
func WithRunHook(fn func(domain.RunRecord)) SchedulerOption {
	return func(s *Scheduler) {
		s.onRun = fn
	}
}

// NewScheduler creates a scheduler. history may be nil.
func NewScheduler(
	interval time.Duration,
	syncer driving.CatalogSync,
	history driven.HistoryStore,
	opts ...SchedulerOption,
) *Scheduler {
	if interval <= 0 {
		interval = domain.DefaultWatchInterval
	}
	s := &Scheduler{
		interval: interval,
		syncer:   syncer,
		history:  history,
		keep:     domain.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a sync immediately and then once per interval.
// This method blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel()
		s.mu.Unlock()
		close(done)
	}()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return nil
		case <-ctx.Done():
			select {
			case <-stopCh:
				return nil
			default:
				return ctx.Err()
			}
		case <-ticker.C:
			if ctx.Err() == nil {
				s.runOnce(ctx)
			}
		}
	}
}

// Stop cancels any run in progress and waits for it to wind down.
// A cancelled run keeps the work it finished; the next run resumes it.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

// runOnce runs a single incremental sync on the scheduler goroutine, so
// ticks that arrive while a run is in progress are skipped.
func (s *Scheduler) runOnce(ctx context.Context) {
	startedAt := time.Now()
	run, err := s.syncer.Sync(ctx, domain.SyncOptions{Mode: domain.SyncModeIncremental})
	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Info("scheduler: skipping tick, a sync is already running")
		return
	}
	if err != nil {
		logger.Error("scheduler: sync failed: %v", err)
	}

	rec := domain.NewRunRecord(run, domain.SyncModeIncremental, startedAt, err)

	// Bookkeeping must outlive a cancelled run
	bctx := context.WithoutCancel(ctx)
	if s.history != nil {
		if recordErr := s.history.RecordRun(bctx, rec); recordErr != nil {
			logger.Warn("scheduler: failed to record run %s: %v", rec.ID, recordErr)
		}
		if pruneErr := s.history.PruneRuns(bctx, s.keep); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}

	if s.notifier != nil && run != nil {
		if notifyErr := s.notifier.Notify(bctx, run); notifyErr != nil {
			logger.Warn("scheduler: notification failed: %v", notifyErr)
		}
	}

	if s.onRun != nil {
		s.onRun(rec)
	}
}
