package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// RunSync runs a sync while rendering the sync view, and returns what the
// sync returned. Stopping from the view cancels the run; the view stays up
// until in-flight work has drained.
func RunSync(
	ctx context.Context,
	syncer driving.CatalogSync,
	opts domain.SyncOptions,
	programOpts ...tea.ProgramOption,
) (*domain.SyncRun, error) {
	if syncer == nil {
		return nil, ErrMissingSyncService
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewSyncApp(opts.Mode, cancel), programOpts...)

	var (
		run  *domain.SyncRun
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		onProgress := opts.OnProgress
		opts.OnProgress = func(ev domain.Progress) {
			p.Send(messages.ProgressReceived{Progress: ev})
			if onProgress != nil {
				onProgress(ev)
			}
		}
		run, err = syncer.Sync(ctx, opts)
		p.Send(messages.SyncFinished{Run: run, Err: err})
	}()

	if _, perr := p.Run(); perr != nil {
		// Without a view there is no way to stop the run from the keyboard
		logger.Warn("sync view failed: %v", perr)
		cancel()
	}
	<-done
	return run, err
}
