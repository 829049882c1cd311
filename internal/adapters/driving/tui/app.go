// Package tui renders a live view of a running sync.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

const (
	maxBarWidth = 60
	minBarWidth = 10
)

// SyncApp is the Bubbletea model of the sync view.
// It implements tea.Model.
type SyncApp struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	status *status.Bar

	spinner   spinner.Model
	listBar   progress.Model
	detailBar progress.Model

	mode   domain.SyncMode
	cancel context.CancelFunc

	listing   domain.Progress
	detailing domain.Progress

	stopping bool
	done     bool
	run      *domain.SyncRun
	err      error
}

// Ensure SyncApp implements tea.Model.
var _ tea.Model = (*SyncApp)(nil)

// NewSyncApp creates the sync view. cancel is called when the user asks
// the run to stop; it may be nil.
func NewSyncApp(mode domain.SyncMode, cancel context.CancelFunc) *SyncApp {
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	theme := s.Theme()

	return &SyncApp{
		styles:    s,
		keymap:    km,
		status:    status.NewBar(s, km),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(s.Title)),
		listBar:   progress.New(progress.WithSolidFill(string(theme.Primary)), progress.WithWidth(maxBarWidth)),
		detailBar: progress.New(progress.WithSolidFill(string(theme.Secondary)), progress.WithWidth(maxBarWidth)),
		mode:      mode,
		cancel:    cancel,
	}
}

// Init implements tea.Model.
func (a *SyncApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *SyncApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, a.keymap.Stop) && !a.stopping && !a.done {
			a.stopping = true
			a.status.SetState(status.StateStopping)
			if a.cancel != nil {
				a.cancel()
			}
		}
		return a, nil

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.ProgressReceived:
		a.applyProgress(msg.Progress)
		return a, nil

	case messages.SyncFinished:
		a.done = true
		a.run = msg.Run
		a.err = msg.Err
		if msg.Err != nil {
			a.status.SetState(status.StateFailed)
			a.status.SetMessage(msg.Err.Error())
		} else {
			a.status.SetState(status.StateDone)
		}
		return a, tea.Quit
	}
	return a, nil
}

func (a *SyncApp) applyProgress(ev domain.Progress) {
	switch ev.Phase {
	case domain.PhaseListing:
		a.listing = ev
	case domain.PhaseDetailing:
		a.detailing = ev
	}
	if a.stopping {
		return
	}
	if ev.Phase == domain.PhaseDetailing {
		a.status.SetState(status.StateDetailing)
	} else if a.status.State() == status.StateStarting {
		a.status.SetState(status.StateListing)
	}
}

// View implements tea.Model.
func (a *SyncApp) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Syncing catalog (%s)", a.mode)
	if a.done {
		b.WriteString(a.styles.Title.Render(title))
	} else {
		b.WriteString(a.spinner.View() + " " + a.styles.Title.Render(title))
	}
	b.WriteString("\n\n")

	b.WriteString(a.progressLine("Listing", a.listBar, a.listing))
	b.WriteString("\n")
	b.WriteString(a.progressLine("Details", a.detailBar, a.detailing))
	b.WriteString("\n\n")
	b.WriteString(a.status.View())
	b.WriteString("\n")
	return b.String()
}

func (a *SyncApp) progressLine(label string, bar progress.Model, p domain.Progress) string {
	counts := fmt.Sprintf("%d", p.Processed)
	if p.Total > 0 {
		counts = fmt.Sprintf("%d/%d", p.Processed, p.Total)
	}
	return a.styles.Label.Render(label) + bar.ViewAs(p.Percent()/100) + " " + a.styles.Muted.Render(counts)
}

// SetWidth resizes the progress bars and status bar.
func (a *SyncApp) SetWidth(width int) {
	barWidth := width - 30
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	a.listBar.Width = barWidth
	a.detailBar.Width = barWidth
	a.status.SetWidth(width)
}

// Stopping reports whether the user asked the run to stop.
func (a *SyncApp) Stopping() bool {
	return a.stopping
}

// Done reports whether the sync has returned.
func (a *SyncApp) Done() bool {
	return a.done
}

// Result returns what the sync returned.
func (a *SyncApp) Result() (*domain.SyncRun, error) {
	return a.run, a.err
}
