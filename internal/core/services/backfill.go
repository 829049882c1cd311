package services

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// BackfillObserver receives backfill outcomes.
// Resolved is called exactly once per dispatched identifier and may be
// called from several workers at once.
type BackfillObserver interface {
	Enqueued(id string)
	Resolved(id string, err error)
}

// Backfiller fetches and merges detail payloads under bounded concurrency.
type Backfiller struct {
	client  driven.CatalogClient
	store   driven.RecordStore
	mirror  driven.ImageMirror
	workers int
	tracer  trace.Tracer
}

// NewBackfiller creates a backfiller. mirror may be nil.
func NewBackfiller(
	client driven.CatalogClient,
	store driven.RecordStore,
	mirror driven.ImageMirror,
	workers int,
	tracer trace.Tracer,
) *Backfiller {
	if workers <= 0 {
		workers = domain.DefaultWorkers
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	return &Backfiller{
		client:  client,
		store:   store,
		mirror:  mirror,
		workers: workers,
		tracer:  tracer,
	}
}

// BackfillResult summarises a finished backfill.
type BackfillResult struct {
	// Enqueued counts distinct identifiers accepted.
	Enqueued int

	// Resolved counts identifiers whose fetch and merge finished,
	// successfully or not.
	Resolved int

	// Dropped counts identifiers never fetched because dispatching stopped.
	Dropped int
}

// BackfillRun is one backfill pass fed incrementally by the listing loop.
// Enqueue and Close must be called from a single goroutine.
type BackfillRun struct {
	b   *Backfiller
	obs BackfillObserver

	in      chan string
	work    chan string
	stopped chan struct{}

	seen     map[string]struct{}
	workerWG sync.WaitGroup

	mu       sync.Mutex
	resolved int
	dropped  int
}

// Start launches the dispatcher and the worker pool.
// Cancelling ctx stops dispatching and drops everything pending; identifiers
// a worker has already started finish their fetch and merge unhindered.
func (b *Backfiller) Start(ctx context.Context, obs BackfillObserver) *BackfillRun {
	r := &BackfillRun{
		b:       b,
		obs:     obs,
		in:      make(chan string),
		work:    make(chan string),
		stopped: make(chan struct{}),
		seen:    make(map[string]struct{}),
	}

	go r.dispatch(ctx)

	workCtx := context.WithoutCancel(ctx)
	for i := 0; i < b.workers; i++ {
		r.workerWG.Add(1)
		go func() {
			defer r.workerWG.Done()
			for id := range r.work {
				// Handed over just as dispatching stopped
				if ctx.Err() != nil {
					r.drop(1)
					continue
				}
				r.process(workCtx, id)
			}
		}()
	}
	return r
}

// Enqueue queues id for detail backfill.
// Returns false when id was already queued in this run, or when dispatching
// has stopped and id is dropped. It never blocks on busy workers.
func (r *BackfillRun) Enqueue(id string) bool {
	if _, dup := r.seen[id]; dup {
		return false
	}
	r.seen[id] = struct{}{}

	// Count before handing off so a fast worker never resolves an
	// identifier the observer has not seen queued.
	r.obs.Enqueued(id)

	select {
	case r.in <- id:
		return true
	case <-r.stopped:
		r.drop(1)
		return false
	}
}

// Close signals that no more identifiers will be queued.
func (r *BackfillRun) Close() {
	close(r.in)
}

// Wait blocks until the queue is drained and every worker is idle.
// Close must be called first.
func (r *BackfillRun) Wait() BackfillResult {
	<-r.stopped
	r.workerWG.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return BackfillResult{
		Enqueued: len(r.seen),
		Resolved: r.resolved,
		Dropped:  r.dropped,
	}
}

// dispatch moves identifiers from the unbounded pending list to workers.
// Sending on a nil channel blocks forever, which disables that select case
// while nothing is pending.
func (r *BackfillRun) dispatch(ctx context.Context) {
	defer close(r.stopped)
	defer close(r.work)

	var pending []string
	in := r.in
	for {
		if ctx.Err() != nil {
			r.drop(len(pending))
			return
		}
		if in == nil && len(pending) == 0 {
			return
		}

		var out chan string
		var next string
		if len(pending) > 0 {
			out = r.work
			next = pending[0]
		}

		select {
		case <-ctx.Done():
			r.drop(len(pending))
			return
		case id, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, id)
		case out <- next:
			pending = pending[1:]
		}
	}
}

func (r *BackfillRun) drop(n int) {
	if n == 0 {
		return
	}
	logger.Debug("sync: dropped %d queued details", n)
	r.mu.Lock()
	r.dropped += n
	r.mu.Unlock()
}

// process fetches, mirrors and merges one identifier.
func (r *BackfillRun) process(ctx context.Context, id string) {
	ctx, span := r.b.tracer.Start(ctx, "catalog.backfill_record",
		trace.WithAttributes(attribute.String("record.id", id)))
	defer span.End()

	err := r.b.backfill(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	r.mu.Lock()
	r.resolved++
	r.mu.Unlock()
	r.obs.Resolved(id, err)
}

func (b *Backfiller) backfill(ctx context.Context, id string) error {
	rec, err := b.client.FetchDetail(ctx, id)
	if err != nil {
		return err
	}
	if b.mirror != nil {
		b.mirrorImages(ctx, id, &rec.Detail)
	}
	if err := b.store.MergeDetail(ctx, id, *rec); err != nil {
		return fmt.Errorf("merge detail: %w", err)
	}
	return nil
}

// mirrorImages copies artwork to the mirror and records the object keys.
// Mirror failures never fail the record.
func (b *Backfiller) mirrorImages(ctx context.Context, id string, detail *domain.Detail) {
	for i := range detail.Images {
		key, err := b.mirror.Mirror(ctx, id, i, detail.Images[i])
		if err != nil {
			logger.Warn("sync: mirror image %d of %s: %v", i, id, err)
			continue
		}
		detail.Images[i].MirrorKey = key
	}
}
