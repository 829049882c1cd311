package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	runs []domain.RunRecord
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// RecordRun logs a run result.
func (s *HistoryStore) RecordRun(_ context.Context, rec domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rec)
	return nil
}

// ListRuns returns recent runs, most recent first.
func (s *HistoryStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RunRecord, len(s.runs))
	copy(result, s.runs)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PruneRuns keeps the most recent 'keep' runs.
func (s *HistoryStore) PruneRuns(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 || len(s.runs) <= keep {
		return nil
	}
	sort.SliceStable(s.runs, func(i, j int) bool {
		return s.runs[i].StartedAt.Before(s.runs[j].StartedAt)
	})
	s.runs = append([]domain.RunRecord(nil), s.runs[len(s.runs)-keep:]...)
	return nil
}
