package domain

import "time"

// RunRecord is the history entry the scheduler keeps for each run it
// triggers. The engine itself never persists runs.
type RunRecord struct {
	// ID is the SyncRun ID.
	ID string

	Mode      SyncMode
	StartedAt time.Time
	EndedAt   time.Time

	// Success is false only when the run aborted.
	Success bool

	// Error contains the abort error if Success is false.
	Error string

	Processed  int
	Created    int
	Updated    int
	ErrorCount int
	Cancelled  bool
}

// NewRunRecord builds a history entry from a run and its abort error.
// run may be nil when the sync failed before starting.
func NewRunRecord(run *SyncRun, mode SyncMode, startedAt time.Time, err error) RunRecord {
	rec := RunRecord{
		Mode:      mode,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if run != nil {
		rec.ID = run.ID
		rec.Processed = run.Processed
		rec.Created = run.Created
		rec.Updated = run.Updated
		rec.ErrorCount = len(run.Errors)
		rec.Cancelled = run.Cancelled
		if !run.FinishedAt.IsZero() {
			rec.EndedAt = run.FinishedAt
		}
	}
	return rec
}

// DefaultHistoryLimit is how many run records the scheduler keeps.
const DefaultHistoryLimit = 100
