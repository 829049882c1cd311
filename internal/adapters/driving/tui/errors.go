package tui

import "errors"

// ErrMissingSyncService is returned when no sync service is provided.
var ErrMissingSyncService = errors.New("tui: sync service is required")
