// Package status provides the status bar of the sync view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui/styles"
)

// State represents the sync state for display.
type State string

const (
	StateStarting  State = "starting"
	StateListing   State = "listing"
	StateDetailing State = "detailing"
	StateStopping  State = "stopping"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Bar displays sync state and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{
		styles: s,
		keymap: km,
		state:  StateStarting,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return s.styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateListing:
		return s.styles.Normal.Render("Listing catalog")
	case StateDetailing:
		return s.styles.Normal.Render("Fetching details")
	case StateStopping:
		return s.styles.Warning.Render("Stopping, finishing in-flight fetches...")
	case StateDone:
		return s.styles.Success.Render("Done")
	case StateFailed:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Failed: %s", s.message))
		}
		return s.styles.Error.Render("Failed")
	default:
		return s.styles.Muted.Render("Starting")
	}
}

// renderRight renders keybinding hints while the sync can still be stopped.
func (s *Bar) renderRight() string {
	if s.state == StateStopping || s.state == StateDone || s.state == StateFailed {
		return ""
	}
	bindings := s.keymap.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the failure message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	if width > 0 {
		s.width = width
	}
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
