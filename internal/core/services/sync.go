package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

const tracerName = "github.com/custodia-labs/catalog-sync/internal/core/services"

// Ensure SyncOrchestrator implements the interface.
var _ driving.CatalogSync = (*SyncOrchestrator)(nil)

// SyncOrchestrator reconciles the local record store against the remote
// catalog. Listing runs on the calling goroutine and feeds a concurrent
// detail backfill as it goes.
type SyncOrchestrator struct {
	client driven.CatalogClient
	store  driven.RecordStore
	mirror driven.ImageMirror

	workers int
	tracer  trace.Tracer

	// Status tracking
	mu     sync.Mutex
	active *runTracker
	last   *domain.SyncRun
}

// Option configures a SyncOrchestrator.
type Option func(*SyncOrchestrator)

// WithWorkers sets the detail backfill concurrency.
func WithWorkers(n int) Option {
	return func(o *SyncOrchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithImageMirror copies record artwork to an object store during backfill.
func WithImageMirror(m driven.ImageMirror) Option {
	return func(o *SyncOrchestrator) {
		o.mirror = m
	}
}

// WithTracerProvider sets the provider used to trace runs.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *SyncOrchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(client driven.CatalogClient, store driven.RecordStore, opts ...Option) *SyncOrchestrator {
	o := &SyncOrchestrator{
		client:  client,
		store:   store,
		workers: domain.DefaultWorkers,
		tracer:  noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sync runs one reconciliation to completion.
//
// Record-scoped failures are collected in the returned run. An error is
// returned only when listing cannot continue; the partial run is returned
// alongside it in phase Failed. Cancelling ctx ends the run early in phase
// Done with Cancelled set.
func (o *SyncOrchestrator) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncRun, error) {
	mode := opts.Mode
	if mode == "" {
		mode = domain.SyncModeIncremental
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: sync mode %q", domain.ErrInvalidInput, mode)
	}

	tracker := newRunTracker(uuid.NewString(), mode, opts.OnProgress)

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, domain.ErrSyncInProgress
	}
	o.active = tracker
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.last = tracker.snapshot()
		o.active = nil
		o.mu.Unlock()
	}()

	ctx, span := o.tracer.Start(ctx, "catalog.sync", trace.WithAttributes(
		attribute.String("sync.id", tracker.run.ID),
		attribute.String("sync.mode", mode.String()),
	))
	defer span.End()

	logger.Info("sync: starting %s run %s", mode, tracker.run.ID)
	tracker.setPhase(domain.PhaseListing)

	// The backfill stops on cancellation and when listing aborts
	backfillCtx, stopBackfill := context.WithCancel(ctx)
	defer stopBackfill()

	backfill := NewBackfiller(o.client, o.store, o.mirror, o.workers, o.tracer).Start(backfillCtx, tracker)
	listStopped, listErr := o.list(ctx, mode, tracker, backfill)
	if listErr != nil {
		stopBackfill()
	}

	// Only fetches already in flight finish after an abort
	backfill.Close()
	result := backfill.Wait()

	if listErr != nil {
		tracker.finish(domain.PhaseFailed, false)
		run := tracker.snapshot()
		span.RecordError(listErr)
		span.SetStatus(codes.Error, listErr.Error())
		logger.Error("sync: run %s failed: %v (%d queued details dropped)", run.ID, listErr, result.Dropped)
		return run, listErr
	}

	tracker.finish(domain.PhaseDone, listStopped || result.Dropped > 0)
	run := tracker.snapshot()
	span.SetAttributes(
		attribute.Int("sync.processed", run.Processed),
		attribute.Int("sync.created", run.Created),
		attribute.Int("sync.updated", run.Updated),
		attribute.Int("sync.errors", len(run.Errors)),
		attribute.Int("sync.details_resolved", result.Resolved),
		attribute.Bool("sync.cancelled", run.Cancelled),
	)
	logger.Info("sync: run %s done: processed=%d created=%d updated=%d errors=%d cancelled=%t",
		run.ID, run.Processed, run.Created, run.Updated, len(run.Errors), run.Cancelled)
	return run, nil
}

// Status returns a snapshot of the running sync, or of the last finished
// one. Returns nil if no sync has run.
func (o *SyncOrchestrator) Status() *domain.SyncRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		return o.active.snapshot()
	}
	if o.last == nil {
		return nil
	}
	run := *o.last
	run.Errors = append([]string{}, o.last.Errors...)
	return &run
}

// list enumerates every page until the cursor runs out or ctx is cancelled.
// The bool reports that cancellation ended listing before the last page.
func (o *SyncOrchestrator) list(
	ctx context.Context,
	mode domain.SyncMode,
	tracker *runTracker,
	backfill *BackfillRun,
) (bool, error) {
	cursor := ""
	for pageNum := 1; ; pageNum++ {
		if ctx.Err() != nil {
			logger.Info("sync: cancelled before page %d", pageNum)
			return true, nil
		}

		page, err := o.listPage(ctx, pageNum, cursor)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return true, nil
			}
			return false, fmt.Errorf("list page %d: %w", pageNum, err)
		}

		if err := o.reconcilePage(ctx, mode, page, tracker, backfill); err != nil {
			return false, fmt.Errorf("reconcile page %d: %w", pageNum, err)
		}
		tracker.pageListed(page.Total)

		if !page.HasMore() {
			return false, nil
		}
		cursor = page.NextCursor
	}
}

func (o *SyncOrchestrator) listPage(ctx context.Context, pageNum int, cursor string) (*domain.Page, error) {
	ctx, span := o.tracer.Start(ctx, "catalog.list_page", trace.WithAttributes(attribute.Int("page", pageNum)))
	defer span.End()

	page, err := o.client.ListPage(ctx, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("page.records", len(page.Records)))
	return page, nil
}

// reconcilePage classifies and writes one page in catalog order.
// A page that has been fetched is always reconciled in full, even if ctx
// is cancelled part way through.
func (o *SyncOrchestrator) reconcilePage(
	ctx context.Context,
	mode domain.SyncMode,
	page *domain.Page,
	tracker *runTracker,
	backfill *BackfillRun,
) error {
	ctx = context.WithoutCancel(ctx)

	ids := make([]string, len(page.Records))
	for i, rec := range page.Records {
		ids[i] = rec.ID
	}
	locals, err := o.store.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load local records: %w", err)
	}

	for _, rec := range page.Records {
		tracker.addProcessed()

		var local *domain.LocalRecord
		if l, ok := locals[rec.ID]; ok {
			local = &l
		}
		class := Classify(rec, local)

		if class.WritesSummary(mode) {
			created, err := o.store.UpsertSummary(ctx, rec)
			if err != nil {
				logger.Warn("sync: upsert %s: %v", rec.ID, err)
				tracker.addError(rec.ID, err)
				continue
			}
			tracker.addWrite(created)
		}

		if class.NeedsDetail() {
			backfill.Enqueue(rec.ID)
		}
	}
	return nil
}
