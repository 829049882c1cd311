package services

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// runTracker owns the mutable state of one run.
// Listing and backfill workers update it concurrently.
type runTracker struct {
	mu  sync.Mutex
	run domain.SyncRun

	// Listing progress
	listTotal int

	// Detailing progress
	enqueued int
	resolved int

	// emitMu serialises progress callbacks so events reach the caller in
	// the order their values were computed.
	emitMu     sync.Mutex
	onProgress domain.ProgressFunc
}

func newRunTracker(id string, mode domain.SyncMode, onProgress domain.ProgressFunc) *runTracker {
	return &runTracker{
		run: domain.SyncRun{
			ID:        id,
			Mode:      mode,
			Phase:     domain.PhaseIdle,
			Errors:    []string{},
			StartedAt: time.Now(),
		},
		onProgress: onProgress,
	}
}

func (t *runTracker) setPhase(phase domain.SyncPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Phase = phase
}

func (t *runTracker) addProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Processed++
}

func (t *runTracker) addWrite(created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if created {
		t.run.Created++
	} else {
		t.run.Updated++
	}
}

// addError appends a record-scoped failure as "<id>: <message>".
func (t *runTracker) addError(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Errors = append(t.run.Errors, fmt.Sprintf("%s: %v", id, err))
}

// Enqueued implements BackfillObserver.
// The first queued identifier moves the run into detailing.
func (t *runTracker) Enqueued(string) {
	t.mu.Lock()
	t.enqueued++
	if t.run.Phase == domain.PhaseListing {
		t.run.Phase = domain.PhaseDetailing
	}
	t.mu.Unlock()
}

// Resolved implements BackfillObserver.
func (t *runTracker) Resolved(id string, err error) {
	if err != nil {
		logger.Debug("sync: detail for %s failed: %v", id, err)
		t.addError(id, err)
	}

	t.emit(func() domain.Progress {
		t.resolved++
		return domain.Progress{Phase: domain.PhaseDetailing, Processed: t.resolved, Total: t.enqueued}
	})
}

// pageListed emits a listing event after a page has been handled.
// reported is the catalog's total, 0 when unknown.
func (t *runTracker) pageListed(reported int) {
	t.emit(func() domain.Progress {
		t.listTotal = max(t.listTotal, reported, t.run.Processed)
		return domain.Progress{Phase: domain.PhaseListing, Processed: t.run.Processed, Total: t.listTotal}
	})
}

// emit computes an event under the state lock and delivers it outside it,
// so a callback may safely call back into the orchestrator.
// Panics raised by the callback are logged and swallowed.
func (t *runTracker) emit(next func() domain.Progress) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	p := next()
	t.mu.Unlock()

	if t.onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("sync: progress callback panicked: %v", r)
		}
	}()
	t.onProgress(p)
}

func (t *runTracker) finish(phase domain.SyncPhase, cancelled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Phase = phase
	t.run.Cancelled = cancelled
	t.run.FinishedAt = time.Now()
}

// snapshot returns a copy safe to hand to callers.
func (t *runTracker) snapshot() *domain.SyncRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	run := t.run
	run.Errors = slices.Clone(t.run.Errors)
	return &run
}
