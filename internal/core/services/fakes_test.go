package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

// --- Test doubles shared by the services tests ---

// fakeCatalog implements driven.CatalogClient over in-memory pages.
type fakeCatalog struct {
	mu sync.Mutex

	pages   [][]domain.RemoteRecord
	total   int
	details map[string]domain.Detail

	// detailErrs fails FetchDetail for the given IDs.
	detailErrs map[string]error

	// listErrAt fails ListPage for the given 1-based page.
	listErrAt int
	listErr   error

	// listFailed is closed the first time ListPage returns listErr.
	listFailed     chan struct{}
	listFailedOnce sync.Once

	// gate blocks FetchDetail for gatedID until closed; started is
	// closed once the gated fetch begins.
	gatedID string
	gate    chan struct{}
	started chan struct{}

	listCalls   int
	detailCalls map[string]int
	fetchCtxErr map[string]error
}

func newFakeCatalog(pages ...[]domain.RemoteRecord) *fakeCatalog {
	return &fakeCatalog{
		pages:       pages,
		details:     make(map[string]domain.Detail),
		detailErrs:  make(map[string]error),
		detailCalls: make(map[string]int),
		fetchCtxErr: make(map[string]error),
		listFailed:  make(chan struct{}),
	}
}

var _ driven.CatalogClient = (*fakeCatalog)(nil)

func (f *fakeCatalog) ListPage(_ context.Context, cursor string) (*domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	idx := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "page-%d", &idx); err != nil {
			return nil, err
		}
	}
	if f.listErr != nil && idx+1 == f.listErrAt {
		f.listFailedOnce.Do(func() { close(f.listFailed) })
		return nil, f.listErr
	}
	if idx >= len(f.pages) {
		return &domain.Page{}, nil
	}

	page := &domain.Page{
		Records: append([]domain.RemoteRecord(nil), f.pages[idx]...),
		Total:   f.total,
	}
	if idx+1 < len(f.pages) {
		page.NextCursor = fmt.Sprintf("page-%d", idx+1)
	}
	return page, nil
}

func (f *fakeCatalog) FetchDetail(ctx context.Context, id string) (*domain.DetailRecord, error) {
	f.mu.Lock()
	f.detailCalls[id]++
	gated := f.gate != nil && id == f.gatedID
	f.mu.Unlock()

	if gated {
		close(f.started)
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCtxErr[id] = ctx.Err()
	if err, ok := f.detailErrs[id]; ok {
		return nil, err
	}
	detail, ok := f.details[id]
	if !ok {
		detail = domain.Detail{Genres: []string{"Jazz"}, Notes: "detail for " + id}
	}
	return &domain.DetailRecord{ID: id, Detail: detail}, nil
}

// gateDetail makes the fetch for id block until the returned release is called.
func (f *fakeCatalog) gateDetail(id string) (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gatedID = id
	f.gate = make(chan struct{})
	f.started = make(chan struct{})
	var once sync.Once
	return f.started, func() { once.Do(func() { close(f.gate) }) }
}

func (f *fakeCatalog) calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[id]
}

func (f *fakeCatalog) totalDetailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.detailCalls {
		n += c
	}
	return n
}

func (f *fakeCatalog) pagesListed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// faultyStore wraps the memory store and injects write failures.
type faultyStore struct {
	*memory.RecordStore
	upsertErrs map[string]error
	mergeErrs  map[string]error
	getManyErr error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		RecordStore: memory.NewRecordStore(),
		upsertErrs:  make(map[string]error),
		mergeErrs:   make(map[string]error),
	}
}

func (s *faultyStore) GetMany(ctx context.Context, ids []string) (map[string]domain.LocalRecord, error) {
	if s.getManyErr != nil {
		return nil, s.getManyErr
	}
	return s.RecordStore.GetMany(ctx, ids)
}

func (s *faultyStore) UpsertSummary(ctx context.Context, rec domain.RemoteRecord) (bool, error) {
	if err, ok := s.upsertErrs[rec.ID]; ok {
		return false, err
	}
	return s.RecordStore.UpsertSummary(ctx, rec)
}

func (s *faultyStore) MergeDetail(ctx context.Context, id string, detail domain.DetailRecord) error {
	if err, ok := s.mergeErrs[id]; ok {
		return err
	}
	return s.RecordStore.MergeDetail(ctx, id, detail)
}

// fakeMirror implements driven.ImageMirror.
type fakeMirror struct {
	mu   sync.Mutex
	fail map[string]bool
	keys []string
}

func (m *fakeMirror) Mirror(_ context.Context, recordID string, index int, _ domain.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[recordID] {
		return "", fmt.Errorf("bucket unavailable")
	}
	key := fmt.Sprintf("records/%s/%d.jpg", recordID, index)
	m.keys = append(m.keys, key)
	return key, nil
}

// progressLog collects progress events.
type progressLog struct {
	mu     sync.Mutex
	events []domain.Progress
}

func (l *progressLog) record(p domain.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *progressLog) phase(phase domain.SyncPhase) []domain.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Progress
	for _, e := range l.events {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	return out
}

func records(ids ...string) []domain.RemoteRecord {
	out := make([]domain.RemoteRecord, len(ids))
	for i, id := range ids {
		out[i] = domain.RemoteRecord{
			ID:      id,
			Summary: domain.Summary{Title: "Title " + id, Artist: "Artist " + id, Year: 1970},
		}
	}
	return out
}
