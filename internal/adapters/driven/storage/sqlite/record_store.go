package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

// getManyBatch keeps IN lists well under SQLite's variable limit.
const getManyBatch = 500

const recordColumns = `id, title, artist, year, format, condition, price, status,
	modified, detail, has_detail, created_at, updated_at, detail_updated_at`

// Ensure recordStore implements the interface.
var _ driven.RecordStore = (*recordStore)(nil)

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

// Get retrieves a record by ID.
func (s *recordStore) Get(ctx context.Context, id string) (*domain.LocalRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetMany returns the records that exist among ids, keyed by ID.
func (s *recordStore) GetMany(ctx context.Context, ids []string) (map[string]domain.LocalRecord, error) {
	result := make(map[string]domain.LocalRecord, len(ids))

	for start := 0; start < len(ids); start += getManyBatch {
		batch := ids[start:min(start+getManyBatch, len(ids))]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		rows, err := s.store.db.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM records WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("querying records: %w", err)
		}

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			result[rec.ID] = *rec
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("iterating records: %w", err)
		}
		_ = rows.Close()
	}

	return result, nil
}

// UpsertSummary creates the record or refreshes its summary fields.
// Re-applying an identical summary leaves the row untouched.
func (s *recordStore) UpsertSummary(ctx context.Context, rec domain.RemoteRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("%w: empty record id", domain.ErrInvalidInput)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.store.now().Format(timeLayout)
	sum := rec.Summary
	modified := formatNullableTime(rec.Modified)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO records (id, title, artist, year, format, condition, price, status,
			modified, has_detail, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, sum.Title, sum.Artist, sum.Year, sum.Format, sum.Condition, sum.Price, sum.Status,
		modified, now, now)
	if err != nil {
		return false, fmt.Errorf("inserting record: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting record: %w", err)
	}

	if inserted == 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE records SET
				title = ?, artist = ?, year = ?, format = ?, condition = ?,
				price = ?, status = ?, modified = ?, updated_at = ?
			WHERE id = ? AND (
				title IS NOT ? OR artist IS NOT ? OR year IS NOT ? OR format IS NOT ? OR
				condition IS NOT ? OR price IS NOT ? OR status IS NOT ? OR modified IS NOT ?
			)
		`, sum.Title, sum.Artist, sum.Year, sum.Format, sum.Condition, sum.Price, sum.Status, modified, now,
			rec.ID,
			sum.Title, sum.Artist, sum.Year, sum.Format, sum.Condition, sum.Price, sum.Status, modified)
		if err != nil {
			return false, fmt.Errorf("updating record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing record: %w", err)
	}
	return inserted == 1, nil
}

// MergeDetail stores the detail payload and sets has_detail.
func (s *recordStore) MergeDetail(ctx context.Context, id string, detail domain.DetailRecord) error {
	payload, err := json.Marshal(toDetailJSON(detail.Detail))
	if err != nil {
		return fmt.Errorf("marshalling detail: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	var hasDetail int
	err = tx.QueryRowContext(ctx, `SELECT detail, has_detail FROM records WHERE id = ?`, id).
		Scan(&current, &hasDetail)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}

	if hasDetail == 1 && current.Valid && current.String == string(payload) {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE records SET detail = ?, has_detail = 1, detail_updated_at = ?
		WHERE id = ?
	`, string(payload), s.store.now().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("merging detail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing detail: %w", err)
	}
	return nil
}

// List returns records ordered by ID.
func (s *recordStore) List(ctx context.Context, filter domain.RecordFilter) ([]domain.LocalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	var args []any
	if filter.MissingDetail {
		query += ` WHERE has_detail = 0`
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var result []domain.LocalRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return result, nil
}

// Stats summarises the store.
func (s *recordStore) Stats(ctx context.Context) (domain.RecordStats, error) {
	var stats domain.RecordStats
	err := s.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(has_detail), 0) FROM records`).
		Scan(&stats.Total, &stats.WithDetail)
	if err != nil {
		return stats, fmt.Errorf("counting records: %w", err)
	}
	stats.MissingDetail = stats.Total - stats.WithDetail
	return stats, nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a record row selected with recordColumns.
// sql.ErrNoRows is returned unwrapped.
func scanRecord(row rowScanner) (*domain.LocalRecord, error) {
	var rec domain.LocalRecord
	var modified, detail, detailUpdatedAt sql.NullString
	var createdAt, updatedAt string
	var hasDetail int

	err := row.Scan(&rec.ID, &rec.Summary.Title, &rec.Summary.Artist, &rec.Summary.Year,
		&rec.Summary.Format, &rec.Summary.Condition, &rec.Summary.Price, &rec.Summary.Status,
		&modified, &detail, &hasDetail, &createdAt, &updatedAt, &detailUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.Modified = parseNullableTime(modified)
	rec.HasDetail = hasDetail == 1
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	rec.DetailUpdatedAt = parseNullableTime(detailUpdatedAt)

	if detail.Valid && detail.String != "" {
		var dj detailJSON
		if err := json.Unmarshal([]byte(detail.String), &dj); err != nil {
			return nil, fmt.Errorf("unmarshalling detail for %s: %w", rec.ID, err)
		}
		d := dj.toDomain()
		rec.Detail = &d
	}

	return &rec, nil
}

// detailJSON is the stored shape of a detail payload.
type detailJSON struct {
	Genres    []string    `json:"genres,omitempty"`
	Styles    []string    `json:"styles,omitempty"`
	Tracklist []trackJSON `json:"tracklist,omitempty"`
	Images    []imageJSON `json:"images,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

type trackJSON struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration,omitempty"`
}

type imageJSON struct {
	Type      string `json:"type,omitempty"`
	URI       string `json:"uri"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	MirrorKey string `json:"mirror_key,omitempty"`
}

func toDetailJSON(d domain.Detail) detailJSON {
	dj := detailJSON{Genres: d.Genres, Styles: d.Styles, Notes: d.Notes}
	for _, t := range d.Tracklist {
		dj.Tracklist = append(dj.Tracklist, trackJSON(t))
	}
	for _, img := range d.Images {
		dj.Images = append(dj.Images, imageJSON(img))
	}
	return dj
}

func (dj detailJSON) toDomain() domain.Detail {
	d := domain.Detail{Genres: dj.Genres, Styles: dj.Styles, Notes: dj.Notes}
	for _, t := range dj.Tracklist {
		d.Tracklist = append(d.Tracklist, domain.Track(t))
	}
	for _, img := range dj.Images {
		d.Images = append(d.Images, domain.Image(img))
	}
	return d
}
