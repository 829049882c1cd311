package domain

import "time"

// SyncMode selects how a run treats unchanged records.
type SyncMode string

// Available sync modes.
const (
	// SyncModeFull re-lists every record and forces a summary rewrite.
	SyncModeFull SyncMode = "full"

	// SyncModeIncremental skips records whose summary is unchanged.
	SyncModeIncremental SyncMode = "incremental"
)

// IsValid returns true if the sync mode is recognised.
func (m SyncMode) IsValid() bool {
	switch m {
	case SyncModeFull, SyncModeIncremental:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m SyncMode) String() string {
	return string(m)
}

// SyncPhase is the state of a run.
type SyncPhase string

// Run phases. A run moves Idle → Listing → Detailing → Done, or to Failed
// when listing cannot continue.
const (
	PhaseIdle      SyncPhase = "idle"
	PhaseListing   SyncPhase = "listing"
	PhaseDetailing SyncPhase = "detailing"
	PhaseDone      SyncPhase = "done"
	PhaseFailed    SyncPhase = "failed"
)

// IsTerminal reports whether the phase ends a run.
func (p SyncPhase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// SyncOptions configures one sync invocation.
type SyncOptions struct {
	// Mode defaults to incremental when empty.
	Mode SyncMode

	// OnProgress receives progress events. May be nil.
	OnProgress ProgressFunc
}

// SyncRun is the aggregate result of one sync invocation.
// It is returned to the caller and never persisted by the engine.
type SyncRun struct {
	ID    string
	Mode  SyncMode
	Phase SyncPhase

	// Processed counts listed records examined, whatever their classification.
	Processed int

	// Created counts local records created by this run.
	Created int

	// Updated counts existing local records whose summary was written.
	Updated int

	// Errors holds record-scoped failures formatted as "<id>: <message>",
	// in the order they occurred.
	Errors []string

	// Cancelled is set when the run stopped early on cancellation.
	// A cancelled run is partial and resumable.
	Cancelled bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorCount returns the number of record-scoped errors.
func (r *SyncRun) ErrorCount() int {
	return len(r.Errors)
}
