package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

func assertCountsConsistent(t *testing.T, run *domain.SyncRun) {
	t.Helper()
	assert.LessOrEqual(t, run.Created+run.Updated, run.Processed)
}

func hasDetail(t *testing.T, store interface {
	Get(context.Context, string) (*domain.LocalRecord, error)
}, id string) bool {
	t.Helper()
	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err, "record %s", id)
	return rec.HasDetail
}

func TestSyncOrchestrator_NewRecordsWithOneMissingDetail(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b", "c"))
	catalog.detailErrs["c"] = domain.ErrNotFound
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(context.Background(), domain.SyncOptions{Mode: domain.SyncModeIncremental})
	require.NoError(t, err)

	assert.Equal(t, 3, run.Processed)
	assert.Equal(t, 3, run.Created)
	assert.Equal(t, 0, run.Updated)
	assert.Equal(t, []string{"c: not found"}, run.Errors)
	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.False(t, run.Cancelled)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.FinishedAt.IsZero())

	assert.True(t, hasDetail(t, store, "a"))
	assert.True(t, hasDetail(t, store, "b"))
	assert.False(t, hasDetail(t, store, "c"))
}

func TestSyncOrchestrator_FailureIsolation(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec-%02d", i+1)
	}
	catalog := newFakeCatalog(records(ids...))
	catalog.detailErrs["rec-05"] = domain.ErrNotFound
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store, WithWorkers(3))

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)

	require.Len(t, run.Errors, 1)
	assert.Equal(t, "rec-05: not found", run.Errors[0])
	for _, id := range ids {
		assert.Equal(t, id != "rec-05", hasDetail(t, store, id), id)
	}
	assertCountsConsistent(t, run)
}

func TestSyncOrchestrator_FullModeIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"), records("c"))
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store)

	first, err := orch.Sync(context.Background(), domain.SyncOptions{Mode: domain.SyncModeFull})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := orch.Sync(context.Background(), domain.SyncOptions{Mode: domain.SyncModeFull})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, 3, second.Processed)
	assert.Empty(t, second.Errors)

	// Detail is never re-fetched for records that have it
	assert.Equal(t, 3, catalog.totalDetailCalls())
}

func TestSyncOrchestrator_ResumesMissingDetail(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b", "c"))
	catalog.detailErrs["c"] = fmt.Errorf("catalog: fetch detail: HTTP 503: %w", domain.ErrTransientFetch)
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store)

	first, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)
	require.Len(t, first.Errors, 1)
	assert.False(t, hasDetail(t, store, "c"))

	delete(catalog.detailErrs, "c")

	second, err := orch.Sync(context.Background(), domain.SyncOptions{Mode: domain.SyncModeIncremental})
	require.NoError(t, err)

	assert.Equal(t, 3, second.Processed)
	assert.Equal(t, 0, second.Created, "c must not be treated as new")
	assert.Equal(t, 1, second.Updated)
	assert.Empty(t, second.Errors)
	assert.True(t, hasDetail(t, store, "c"))
	assert.Equal(t, 2, catalog.calls("c"))
	assert.Equal(t, 1, catalog.calls("a"))
}

func TestSyncOrchestrator_FullModeRewritesUnchangedWithoutFetch(t *testing.T) {
	ctx := context.Background()
	rec := records("x")[0]
	store := memory.NewRecordStore()
	_, err := store.UpsertSummary(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.MergeDetail(ctx, "x", domain.DetailRecord{ID: "x"}))

	catalog := newFakeCatalog([]domain.RemoteRecord{rec})
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(ctx, domain.SyncOptions{Mode: domain.SyncModeFull})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Created)
	assert.Equal(t, 1, run.Updated)
	assert.Empty(t, run.Errors)
	assert.Equal(t, 0, catalog.totalDetailCalls())
}

func TestSyncOrchestrator_IncrementalSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	rec := records("x")[0]
	store := memory.NewRecordStore()
	_, err := store.UpsertSummary(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.MergeDetail(ctx, "x", domain.DetailRecord{ID: "x"}))

	orch := NewSyncOrchestrator(newFakeCatalog([]domain.RemoteRecord{rec}), store)

	run, err := orch.Sync(ctx, domain.SyncOptions{Mode: domain.SyncModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Created+run.Updated)
}

func TestSyncOrchestrator_ChangedRefreshesSummaryOnly(t *testing.T) {
	ctx := context.Background()
	rec := records("x")[0]
	store := memory.NewRecordStore()
	_, err := store.UpsertSummary(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, store.MergeDetail(ctx, "x", domain.DetailRecord{ID: "x", Detail: domain.Detail{Notes: "old"}}))

	changed := rec
	changed.Summary.Price = "30.00"
	catalog := newFakeCatalog([]domain.RemoteRecord{changed})
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 0, catalog.totalDetailCalls())

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "30.00", got.Summary.Price)
	assert.Equal(t, "old", got.Detail.Notes)
}

func TestSyncOrchestrator_DuplicateIdentifiersFetchedOnce(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"), records("b", "c"), records("a"))
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store, WithWorkers(2))

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, run.Processed)
	assert.Equal(t, 3, run.Created)
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 1, catalog.calls(id), id)
	}
	assertCountsConsistent(t, run)
}

func TestSyncOrchestrator_FatalListingErrorFirstPage(t *testing.T) {
	catalog := newFakeCatalog(records("a"))
	catalog.listErrAt = 1
	catalog.listErr = fmt.Errorf("catalog: list page: HTTP 401: %w", domain.ErrFatalFetch)
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore())

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFatalFetch)
	require.NotNil(t, run)
	assert.Equal(t, domain.PhaseFailed, run.Phase)
	assert.Equal(t, 0, run.Processed)
}

// syncWhileGated runs a sync whose first detail fetch blocks until listing
// has failed, then releases it and returns the result.
func syncWhileGated(t *testing.T, catalog *fakeCatalog, orch *SyncOrchestrator, gatedID string) (*domain.SyncRun, error) {
	t.Helper()
	started, release := catalog.gateDetail(gatedID)
	defer release()

	type result struct {
		run *domain.SyncRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := orch.Sync(context.Background(), domain.SyncOptions{})
		done <- result{run, err}
	}()

	<-started
	select {
	case <-catalog.listFailed:
	case <-time.After(5 * time.Second):
		t.Fatal("listing never failed")
	}
	// Let the orchestrator stop dispatching before the worker frees up
	time.Sleep(100 * time.Millisecond)
	release()

	select {
	case res := <-done:
		return res.run, res.err
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not return after listing failed")
		return nil, nil
	}
}

func TestSyncOrchestrator_ExhaustedListingRetriesStopDispatch(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"), records("c"))
	catalog.listErrAt = 2
	catalog.listErr = fmt.Errorf("catalog: list page: HTTP 502: %w", domain.ErrTransientFetch)
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store, WithWorkers(1))

	run, err := syncWhileGated(t, catalog, orch, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientFetch)
	assert.Equal(t, domain.PhaseFailed, run.Phase)
	assert.False(t, run.Cancelled)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 2, run.Created)

	// The fetch in flight at the abort finishes; queued work is not started
	assert.True(t, hasDetail(t, store, "a"))
	assert.False(t, hasDetail(t, store, "b"))
	assert.Equal(t, 0, catalog.calls("b"))
}

func TestSyncOrchestrator_FatalListingErrorDispatchesNothingNew(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("r%02d", i)
	}
	catalog := newFakeCatalog(records(ids...), records("next"))
	catalog.listErrAt = 2
	catalog.listErr = fmt.Errorf("catalog: list page: HTTP 401: %w", domain.ErrFatalFetch)
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore(), WithWorkers(1))

	run, err := syncWhileGated(t, catalog, orch, "r00")
	require.ErrorIs(t, err, domain.ErrFatalFetch)

	assert.Equal(t, 1, catalog.totalDetailCalls())
	assert.Equal(t, 50, run.Processed)
	assert.Empty(t, run.Errors, "dropped details are not record errors")
}

func TestSyncOrchestrator_SnapshotFailureIsFatal(t *testing.T) {
	store := newFaultyStore()
	store.getManyErr = errors.New("database is locked")
	orch := NewSyncOrchestrator(newFakeCatalog(records("a")), store)

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Equal(t, domain.PhaseFailed, run.Phase)
}

func TestSyncOrchestrator_UpsertFailureIsRecordScoped(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"))
	store := newFaultyStore()
	store.upsertErrs["a"] = errors.New("disk full")
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, []string{"a: disk full"}, run.Errors)
	assert.Equal(t, 0, catalog.calls("a"), "no detail for a record that was never written")
	assert.True(t, hasDetail(t, store, "b"))
}

func TestSyncOrchestrator_MergeNotFoundIsRecordScoped(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"))
	store := newFaultyStore()
	store.mergeErrs["b"] = domain.ErrNotFound
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b: merge detail: not found"}, run.Errors)
	assert.True(t, hasDetail(t, store, "a"))
}

func TestSyncOrchestrator_CancelStopsListing(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"), records("c", "d"), records("e"))
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := orch.Sync(ctx, domain.SyncOptions{
		OnProgress: func(p domain.Progress) {
			if p.Phase == domain.PhaseListing {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	assert.True(t, run.Cancelled)
	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.Equal(t, 1, catalog.pagesListed())
	assert.Equal(t, 2, run.Processed)
}

func TestSyncOrchestrator_CancelLetsInFlightFetchFinish(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"))
	started, release := catalog.gateDetail("a")
	defer release()
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		run *domain.SyncRun
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := orch.Sync(ctx, domain.SyncOptions{})
		done <- result{run, err}
	}()

	<-started
	cancel()
	release()

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not finish after cancellation")
	}

	require.NoError(t, res.err)
	assert.True(t, res.run.Cancelled)
	assert.True(t, hasDetail(t, store, "a"))
	assert.Equal(t, 0, catalog.calls("b"), "queued work is dropped")
	assert.Empty(t, res.run.Errors)

	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	assert.NoError(t, catalog.fetchCtxErr["a"], "in-flight fetch must not see the cancellation")
}

func TestSyncOrchestrator_ProgressIsMonotonic(t *testing.T) {
	pages := make([][]domain.RemoteRecord, 4)
	for p := range pages {
		ids := make([]string, 5)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d-%d", p, i)
		}
		pages[p] = records(ids...)
	}
	catalog := newFakeCatalog(pages...)
	catalog.total = 20
	catalog.detailErrs["p2-3"] = domain.ErrNotFound

	var log progressLog
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore(), WithWorkers(4))

	run, err := orch.Sync(context.Background(), domain.SyncOptions{OnProgress: log.record})
	require.NoError(t, err)

	listing := log.phase(domain.PhaseListing)
	require.Len(t, listing, 4)
	detailing := log.phase(domain.PhaseDetailing)
	require.Len(t, detailing, 20)

	for _, events := range [][]domain.Progress{listing, detailing} {
		prev := domain.Progress{}
		for _, e := range events {
			assert.GreaterOrEqual(t, e.Processed, prev.Processed)
			assert.GreaterOrEqual(t, e.Total, prev.Total)
			assert.LessOrEqual(t, e.Processed, e.Total)
			prev = e
		}
	}

	assert.Equal(t, domain.Progress{Phase: domain.PhaseListing, Processed: 20, Total: 20}, listing[3])
	assert.Equal(t, domain.Progress{Phase: domain.PhaseDetailing, Processed: 20, Total: 20}, detailing[19])
	assert.Len(t, run.Errors, 1)
}

func TestSyncOrchestrator_ListingTotalFallsBackToProcessed(t *testing.T) {
	var log progressLog
	orch := NewSyncOrchestrator(newFakeCatalog(records("a", "b"), records("c")), memory.NewRecordStore())

	_, err := orch.Sync(context.Background(), domain.SyncOptions{OnProgress: log.record})
	require.NoError(t, err)

	listing := log.phase(domain.PhaseListing)
	require.Len(t, listing, 2)
	assert.Equal(t, 2, listing[0].Total)
	assert.Equal(t, 3, listing[1].Total)
}

func TestSyncOrchestrator_PanickingProgressCallbackIsSwallowed(t *testing.T) {
	catalog := newFakeCatalog(records("a", "b"))
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store)

	run, err := orch.Sync(context.Background(), domain.SyncOptions{
		OnProgress: func(domain.Progress) { panic("renderer crashed") },
	})
	require.NoError(t, err)
	assert.Empty(t, run.Errors)
	assert.Equal(t, 2, run.Created)
	assert.True(t, hasDetail(t, store, "b"))
}

func TestSyncOrchestrator_ProgressCallbackMayReadStatus(t *testing.T) {
	orch := NewSyncOrchestrator(newFakeCatalog(records("a")), memory.NewRecordStore())

	var seen []*domain.SyncRun
	_, err := orch.Sync(context.Background(), domain.SyncOptions{
		OnProgress: func(domain.Progress) { seen = append(seen, orch.Status()) },
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.NotNil(t, seen[0])
}

func TestSyncOrchestrator_RejectsConcurrentSync(t *testing.T) {
	catalog := newFakeCatalog(records("a"))
	started, release := catalog.gateDetail("a")
	defer release()
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore())

	done := make(chan error, 1)
	go func() {
		_, err := orch.Sync(context.Background(), domain.SyncOptions{})
		done <- err
	}()
	<-started

	status := orch.Status()
	require.NotNil(t, status)
	assert.Equal(t, domain.PhaseDetailing, status.Phase)

	_, err := orch.Sync(context.Background(), domain.SyncOptions{})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	release()
	require.NoError(t, <-done)

	status = orch.Status()
	require.NotNil(t, status)
	assert.Equal(t, domain.PhaseDone, status.Phase)
}

func TestSyncOrchestrator_InvalidMode(t *testing.T) {
	orch := NewSyncOrchestrator(newFakeCatalog(), memory.NewRecordStore())

	run, err := orch.Sync(context.Background(), domain.SyncOptions{Mode: "sideways"})
	assert.Nil(t, run)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, orch.Status())
}

func TestSyncOrchestrator_EmptyCatalog(t *testing.T) {
	orch := NewSyncOrchestrator(newFakeCatalog(), memory.NewRecordStore())

	run, err := orch.Sync(context.Background(), domain.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.Equal(t, domain.SyncModeIncremental, run.Mode)
}

func TestSyncOrchestrator_MirrorsImages(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(records("a", "b"))
	for _, id := range []string{"a", "b"} {
		catalog.details[id] = domain.Detail{Images: []domain.Image{
			{Type: "primary", URI: "https://img/" + id + "/0.jpg"},
			{Type: "secondary", URI: "https://img/" + id + "/1.jpg"},
		}}
	}
	mirror := &fakeMirror{fail: map[string]bool{"b": true}}
	store := memory.NewRecordStore()
	orch := NewSyncOrchestrator(catalog, store, WithImageMirror(mirror))

	run, err := orch.Sync(ctx, domain.SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, run.Errors, "mirror failures never fail a record")

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "records/a/0.jpg", a.Detail.Images[0].MirrorKey)
	assert.Equal(t, "records/a/1.jpg", a.Detail.Images[1].MirrorKey)

	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.HasDetail)
	assert.Empty(t, b.Detail.Images[0].MirrorKey)
}

func TestSyncOrchestrator_LateCancelAfterDrainIsNotCancelled(t *testing.T) {
	catalog := newFakeCatalog(records("a"))
	orch := NewSyncOrchestrator(catalog, memory.NewRecordStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel once the only detail has resolved; nothing is left to stop
	run, err := orch.Sync(ctx, domain.SyncOptions{
		OnProgress: func(p domain.Progress) {
			if p.Phase == domain.PhaseDetailing && p.Total > 0 && p.Processed == p.Total {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseDone, run.Phase)
	assert.False(t, run.Cancelled)
	assert.Equal(t, 1, catalog.calls("a"))
}
