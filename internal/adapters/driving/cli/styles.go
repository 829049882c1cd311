package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	colorPrimary = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("240")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconError   = "✗"
)

// isTerminal reports whether w is a terminal.
// Buffers and pipes get plain, unstyled output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if !isTerminal(w) {
		return s
	}
	return style.Render(s)
}

func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", render(w, style, icon), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...any) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

func printError(w io.Writer, format string, args ...any) {
	printStyled(w, iconError, errorStyle, format, args...)
}

func printLabel(w io.Writer, label, value string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", render(w, labelStyle, label+":"), value)
}

func printMuted(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, render(w, mutedStyle, fmt.Sprintf(format, args...)))
}
