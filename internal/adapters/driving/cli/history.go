package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scheduled and manual runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if services == nil || services.History == nil {
		return errors.New("history store not configured")
	}
	if historyLimit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", domain.ErrInvalidInput)
	}

	runs, err := services.History.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		printMuted(out, "No recorded runs yet.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "MODE", "DURATION", "PROCESSED", "CREATED", "UPDATED", "ERRORS", "RESULT").
		StyleFunc(tableStyle)
	for _, r := range runs {
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode.String(),
			r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Updated),
			strconv.Itoa(r.ErrorCount),
			runResult(r),
		)
	}
	_, _ = fmt.Fprintln(out, t.Render())
	return nil
}

func runResult(r domain.RunRecord) string {
	switch {
	case !r.Success:
		return "failed"
	case r.Cancelled:
		return "cancelled"
	default:
		return "ok"
	}
}
