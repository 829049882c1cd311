package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/tui"
	"github.com/custodia-labs/catalog-sync/internal/connectors/catalog"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// notifyTimeout bounds the completion webhook after a run.
const notifyTimeout = 30 * time.Second

// maxErrorsShown caps the record errors printed after a run.
const maxErrorsShown = 10

var (
	syncFull    bool
	syncWorkers int
	syncNotify  bool
	syncPlain   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the local store with the catalog",
	Long: `Lists the remote catalog and reconciles every record against the local
store. New records and records missing detail are queued for a detail
fetch, which runs concurrently with listing.

Incremental mode (the default) skips records whose summary is unchanged.
--full rewrites every summary.

On a terminal the run is shown in a live view; --plain (or --verbose)
prints line progress instead.

Press Ctrl+C (or q in the live view) to stop early. Work already stored is kept and the next run
picks up where this one stopped.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Rewrite every summary instead of skipping unchanged records")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "Detail fetch concurrency (default from config)")
	syncCmd.Flags().BoolVar(&syncNotify, "notify", false, "Post a run summary to the configured webhook")
	syncCmd.Flags().BoolVar(&syncPlain, "plain", false, "Print line progress instead of the live view")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Sync == nil {
		return errors.New("sync service not configured")
	}
	if syncWorkers < 0 {
		return fmt.Errorf("%w: --workers must not be negative", domain.ErrInvalidInput)
	}

	mode := domain.SyncModeIncremental
	if syncFull {
		mode = domain.SyncModeFull
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	opts := domain.SyncOptions{Mode: mode}

	started := time.Now()
	var (
		run *domain.SyncRun
		err error
	)
	if useLiveView(out) {
		run, err = tui.RunSync(ctx, services.Sync, opts, tea.WithOutput(out))
	} else {
		progress := newProgressPrinter(out)
		opts.OnProgress = progress.update
		run, err = services.Sync.Sync(ctx, opts)
		progress.finish()
	}
	recordHistory(ctx, run, mode, started, err)

	if run != nil {
		printRunSummary(out, run, err)
		if syncNotify {
			notifyRun(ctx, out, run)
		}
	}
	if err != nil {
		if catalog.IsUnauthorized(err) {
			printWarning(out, "The catalog rejected the token; set catalog.token or CATALOG_TOKEN")
		}
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// useLiveView reports whether the run should render in the TUI.
// Verbose logging would interleave with the view, so it forces line output.
func useLiveView(out io.Writer) bool {
	return !syncPlain && !verbose && isTerminal(out)
}

// recordHistory logs the run so status and history can show it.
func recordHistory(ctx context.Context, run *domain.SyncRun, mode domain.SyncMode, started time.Time, runErr error) {
	if services.History == nil || errors.Is(runErr, domain.ErrSyncInProgress) {
		return
	}
	hctx := context.WithoutCancel(ctx)
	if err := services.History.RecordRun(hctx, domain.NewRunRecord(run, mode, started, runErr)); err != nil {
		logger.Warn("failed to record run history: %v", err)
		return
	}
	if err := services.History.PruneRuns(hctx, domain.DefaultHistoryLimit); err != nil {
		logger.Warn("failed to prune run history: %v", err)
	}
}

// notifyRun sends the completion webhook. Failures are reported, not returned.
func notifyRun(ctx context.Context, out io.Writer, run *domain.SyncRun) {
	if services.Notifier == nil {
		printWarning(out, "No webhook configured; set notify.webhook_url to enable --notify")
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := services.Notifier.Notify(nctx, run); err != nil {
		logger.Warn("notification failed: %v", err)
		printWarning(out, "Notification failed: %v", err)
		return
	}
	logger.Debug("notification sent for run %s", run.ID)
}

// progressPrinter renders progress events. On a terminal it rewrites one
// line in place; otherwise it prints a line when the phase changes.
// Events arrive serialised, so it needs no locking.
type progressPrinter struct {
	out      io.Writer
	tty      bool
	phase    domain.SyncPhase
	last     domain.Progress
	lineOpen bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, tty: isTerminal(out)}
}

func (p *progressPrinter) update(ev domain.Progress) {
	changed := ev.Phase != p.phase
	p.phase = ev.Phase
	p.last = ev

	if p.tty {
		if changed && p.lineOpen {
			_, _ = fmt.Fprintln(p.out)
		}
		_, _ = fmt.Fprintf(p.out, "\r%s", formatProgress(ev))
		p.lineOpen = true
		return
	}
	if changed {
		_, _ = fmt.Fprintln(p.out, formatProgress(ev))
	}
}

func (p *progressPrinter) finish() {
	if p.tty && p.lineOpen {
		_, _ = fmt.Fprintf(p.out, "\r%s\n", formatProgress(p.last))
		p.lineOpen = false
	}
}

func formatProgress(ev domain.Progress) string {
	label := "Listing"
	if ev.Phase == domain.PhaseDetailing {
		label = "Fetching details"
	}
	if ev.Total == 0 {
		return fmt.Sprintf("%s... %d", label, ev.Processed)
	}
	return fmt.Sprintf("%s... %d/%d (%.0f%%)", label, ev.Processed, ev.Total, ev.Percent())
}

// printRunSummary prints the outcome of a run and its record errors.
func printRunSummary(out io.Writer, run *domain.SyncRun, runErr error) {
	counts := fmt.Sprintf("processed %d, created %d, updated %d, errors %d",
		run.Processed, run.Created, run.Updated, run.ErrorCount())
	elapsed := run.Duration().Round(time.Millisecond)

	switch {
	case runErr != nil:
		printError(out, "Sync failed after %s (%s): %v", elapsed, counts, runErr)
	case run.Cancelled:
		printWarning(out, "Sync stopped after %s (%s). Run again to resume.", elapsed, counts)
	case run.ErrorCount() > 0:
		printWarning(out, "Sync finished in %s (%s)", elapsed, counts)
	default:
		printSuccess(out, "Sync finished in %s (%s)", elapsed, counts)
	}

	for i, e := range run.Errors {
		if i == maxErrorsShown {
			printMuted(out, "  ... and %d more", len(run.Errors)-maxErrorsShown)
			break
		}
		printMuted(out, "  %s", strings.TrimSpace(e))
	}
}
