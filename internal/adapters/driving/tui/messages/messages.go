// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// ProgressReceived carries one progress event from the running sync.
type ProgressReceived struct {
	Progress domain.Progress
}

// SyncFinished is sent once when the sync returns.
type SyncFinished struct {
	Run *domain.SyncRun
	Err error
}
