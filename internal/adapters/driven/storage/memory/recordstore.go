package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.LocalRecord
	now     func() time.Time
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]domain.LocalRecord),
		now:     time.Now,
	}
}

// Get retrieves a record by ID.
func (s *RecordStore) Get(_ context.Context, id string) (*domain.LocalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

// GetMany returns the records that exist among ids.
func (s *RecordStore) GetMany(_ context.Context, ids []string) (map[string]domain.LocalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]domain.LocalRecord, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			result[id] = cloneRecord(rec)
		}
	}
	return result, nil
}

// UpsertSummary creates the record or refreshes its summary fields.
func (s *RecordStore) UpsertSummary(_ context.Context, rec domain.RemoteRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("%w: empty record id", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.records[rec.ID]
	if !ok {
		s.records[rec.ID] = domain.LocalRecord{
			ID:        rec.ID,
			Summary:   rec.Summary,
			Modified:  rec.Modified,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return true, nil
	}

	if existing.Summary == rec.Summary && existing.Modified.Equal(rec.Modified) {
		return false, nil
	}
	existing.Summary = rec.Summary
	existing.Modified = rec.Modified
	existing.UpdatedAt = now
	s.records[rec.ID] = existing
	return false, nil
}

// MergeDetail stores the detail payload and sets HasDetail.
func (s *RecordStore) MergeDetail(_ context.Context, id string, detail domain.DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.HasDetail && existing.Detail != nil && existing.Detail.Equal(detail.Detail) {
		return nil
	}

	d := detail.Detail.Clone()
	existing.Detail = &d
	existing.HasDetail = true
	existing.DetailUpdatedAt = s.now()
	s.records[id] = existing
	return nil
}

// List returns records ordered by ID.
func (s *RecordStore) List(_ context.Context, filter domain.RecordFilter) ([]domain.LocalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LocalRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.MissingDetail && rec.HasDetail {
			continue
		}
		result = append(result, cloneRecord(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Stats summarises the store.
func (s *RecordStore) Stats(_ context.Context) (domain.RecordStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.RecordStats
	for _, rec := range s.records {
		stats.Total++
		if rec.HasDetail {
			stats.WithDetail++
		} else {
			stats.MissingDetail++
		}
	}
	return stats, nil
}

func cloneRecord(rec domain.LocalRecord) domain.LocalRecord {
	if rec.Detail != nil {
		d := rec.Detail.Clone()
		rec.Detail = &d
	}
	return rec
}
