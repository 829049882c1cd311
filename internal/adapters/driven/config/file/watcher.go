package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to the config file.
type Watcher struct {
	path     string
	debounce time.Duration
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: DefaultDebounce}
}

// Watch signals on the returned channel once the config file has been
// written, created or replaced and has then been quiet for the debounce
// window. The channel is closed when ctx is done.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file are still seen.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer func() { _ = fw.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.handleFsEvent(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch: %v", err)

		case <-fire:
			fire = nil
			logger.Debug("config watch: %s changed", w.path)
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// handleFsEvent reports whether ev changes the config file's content.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
