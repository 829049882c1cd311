package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

// Ensure historyStore implements the interface.
var _ driven.HistoryStore = (*historyStore)(nil)

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

// RecordRun logs a run result.
func (s *historyStore) RecordRun(ctx context.Context, rec domain.RunRecord) error {
	var errMsg any
	if rec.Error != "" {
		errMsg = rec.Error
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO run_history (run_id, mode, started_at, ended_at, success, error,
			processed, created, updated, error_count, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		string(rec.Mode),
		rec.StartedAt.UTC().Format(timeLayout),
		rec.EndedAt.UTC().Format(timeLayout),
		boolToInt(rec.Success),
		errMsg,
		rec.Processed,
		rec.Created,
		rec.Updated,
		rec.ErrorCount,
		boolToInt(rec.Cancelled),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs, most recent first.
// A limit of 0 or less returns every run.
func (s *historyStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, mode, started_at, ended_at, success, error,
			processed, created, updated, error_count, cancelled
		FROM run_history
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var results []domain.RunRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run history: %w", err)
	}

	return results, nil
}

// PruneRuns keeps the most recent 'keep' runs and deletes the rest.
func (s *historyStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM run_history
		WHERE id NOT IN (
			SELECT id FROM run_history ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	return nil
}

// scanRunRecord scans a run history row.
func scanRunRecord(rows *sql.Rows) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var mode, startedAt, endedAt string
	var success, cancelled int
	var errMsg sql.NullString

	if err := rows.Scan(&rec.ID, &mode, &startedAt, &endedAt, &success, &errMsg,
		&rec.Processed, &rec.Created, &rec.Updated, &rec.ErrorCount, &cancelled); err != nil {
		return nil, fmt.Errorf("scanning run record: %w", err)
	}

	rec.Mode = domain.SyncMode(mode)
	rec.StartedAt = parseTime(startedAt)
	rec.EndedAt = parseTime(endedAt)
	rec.Success = success == 1
	rec.Cancelled = cancelled == 1
	if errMsg.Valid {
		rec.Error = errMsg.String
	}

	return &rec, nil
}
