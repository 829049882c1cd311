package domain

// Progress is a single progress event pushed to the caller.
type Progress struct {
	// Phase is PhaseListing or PhaseDetailing.
	Phase SyncPhase

	// Processed is the number of items finished in this phase.
	Processed int

	// Total is the number of items known for this phase so far.
	// During listing it is the catalog's reported total when available.
	// During detailing it is the number of identifiers enqueued, final once
	// listing has ended.
	Total int
}

// Percent returns progress as a percentage (0-100).
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// ProgressFunc is called with progress updates during a sync.
type ProgressFunc func(Progress)
