package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store statistics and the last run",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Records == nil {
		return errors.New("record store not configured")
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	stats, err := services.Records.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	printLabel(out, "Records", fmt.Sprintf("%d", stats.Total))
	printLabel(out, "With detail", fmt.Sprintf("%d", stats.WithDetail))
	printLabel(out, "Missing detail", fmt.Sprintf("%d", stats.MissingDetail))

	if services.History == nil {
		return nil
	}
	runs, err := services.History.ListRuns(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if len(runs) == 0 {
		printMuted(out, "No recorded runs yet.")
		return nil
	}

	last := runs[0]
	result := "ok"
	switch {
	case !last.Success:
		result = "failed: " + last.Error
	case last.Cancelled:
		result = "cancelled"
	}
	printLabel(out, "Last run", fmt.Sprintf("%s (%s, %s ago, %s)",
		last.ID, last.Mode, time.Since(last.EndedAt).Round(time.Second), result))
	return nil
}
