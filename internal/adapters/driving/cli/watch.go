package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run incremental syncs on an interval",
	Long: `Runs an incremental sync immediately and then once per interval until
interrupted. Each run is recorded in the run history and, when a webhook
is configured, announced to it.

Saving config.toml while watching reloads the settings and restarts the
schedule. A run in progress is cancelled and resumed by the next run.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Time between runs (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if services == nil || services.NewScheduler == nil {
		return errors.New("scheduler not configured")
	}
	if watchInterval < 0 {
		return fmt.Errorf("%w: --interval must not be negative", domain.ErrInvalidInput)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var changes <-chan struct{}
	if services.ConfigChanges != nil {
		ch, err := services.ConfigChanges(ctx)
		if err != nil {
			printWarning(out, "Config changes will not be picked up: %v", err)
		} else {
			changes = ch
		}
	}

	for {
		interval := watchInterval
		if interval == 0 {
			interval = services.WatchInterval
		}

		runCtx, cancelRun := context.WithCancel(ctx)
		sched := services.NewScheduler(interval, reportRun(out))
		errCh := make(chan error, 1)
		go func() { errCh <- sched.Start(runCtx) }()
		printMuted(out, "Watching the catalog every %s. Press Ctrl+C to stop.", interval)

		reload := false
		for !reload {
			select {
			case err := <-errCh:
				cancelRun()
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("watch stopped: %w", err)
				}
				return nil
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				reload = true
			}
		}

		// The run in progress is cancelled; the next scheduler resumes it.
		cancelRun()
		<-errCh
		if ctx.Err() != nil {
			return nil
		}
		printMuted(out, "Config changed, reloading")
		reloadServices(cmd, out)
	}
}

// reloadServices rebuilds bootstrapped services from the current config.
// The previous services stay in place when the new config is rejected.
func reloadServices(cmd *cobra.Command, out io.Writer) {
	if !bootstrapped || bootstrap == nil {
		return
	}
	svc, err := bootstrap(bootstrapOptions(cmd))
	if err != nil {
		printWarning(out, "Keeping previous settings: %v", err)
		return
	}
	old := services
	services = svc
	if old != nil && old.Close != nil {
		if err := old.Close(); err != nil {
			logger.Warn("failed to close previous services: %v", err)
		}
	}
}

func reportRun(out io.Writer) func(domain.RunRecord) {
	return func(rec domain.RunRecord) {
		counts := fmt.Sprintf("processed %d, created %d, updated %d, errors %d",
			rec.Processed, rec.Created, rec.Updated, rec.ErrorCount)
		switch {
		case !rec.Success:
			printError(out, "Run %s failed: %s", rec.ID, rec.Error)
		case rec.ErrorCount > 0 || rec.Cancelled:
			printWarning(out, "Run %s (%s)", rec.ID, counts)
		default:
			printSuccess(out, "Run %s (%s)", rec.ID, counts)
		}
	}
}
