// Package cli provides the catalog-sync command line interface.
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// Command annotations controlling bootstrap.
const (
	// skipBootstrap marks commands that run without services.
	skipBootstrap = "skip-bootstrap"

	// settingsOnly marks commands that need settings but not the store or catalog.
	settingsOnly = "settings-only"
)

var (
	version = "dev"

	verbose   bool
	configDir string
	dataDir   string
)

// Services are the dependencies commands run against.
type Services struct {
	Sync     driving.CatalogSync
	Settings driving.SettingsService
	Records  driven.RecordStore
	History  driven.HistoryStore

	// Notifier is nil when no webhook is configured.
	Notifier driven.Notifier

	// NewScheduler builds a scheduler that calls hook after every run.
	NewScheduler func(interval time.Duration, hook func(domain.RunRecord)) driving.Scheduler

	// WatchInterval is the configured scheduler interval.
	WatchInterval time.Duration

	// ConfigChanges signals whenever the config file changes. May be nil.
	ConfigChanges func(ctx context.Context) (<-chan struct{}, error)

	// Close releases resources. May be nil.
	Close func() error
}

// BootstrapOptions carries command line overrides to the bootstrap function.
type BootstrapOptions struct {
	ConfigDir string
	DataDir   string

	// Workers overrides the configured backfill concurrency when positive.
	Workers int

	// SettingsOnly asks for Services with only Settings set. Settings are
	// not validated, so a broken config can still be repaired.
	SettingsOnly bool
}

// BootstrapFunc builds services once flags are parsed.
type BootstrapFunc func(BootstrapOptions) (*Services, error)

var (
	bootstrap BootstrapFunc
	services  *Services

	// bootstrapped is set when services were built by bootstrap and must be closed.
	bootstrapped bool
)

var rootCmd = &cobra.Command{
	Use:   "catalog-sync",
	Short: "Mirror a remote record catalog into a local store",
	Long: `catalog-sync keeps a local copy of a remote record catalog.

It lists the catalog page by page, stores each record's summary, and
fetches full detail in the background for records that need it.
Runs are resumable: interrupting a sync loses nothing already stored.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: ~/.catalog-sync)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.catalog-sync/data)")
}

// SetBootstrap registers the function that wires services.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command with the given build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	err := rootCmd.Execute()

	// PersistentPostRunE is skipped when a command fails.
	if cerr := teardown(nil, nil); err == nil {
		err = cerr
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Annotations[skipBootstrap] == "true" || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("services not configured")
	}

	svc, err := bootstrap(bootstrapOptions(cmd))
	if err != nil {
		return err
	}
	services = svc
	bootstrapped = true
	return nil
}

func bootstrapOptions(cmd *cobra.Command) BootstrapOptions {
	return BootstrapOptions{
		ConfigDir:    configDir,
		DataDir:      dataDir,
		Workers:      syncWorkers,
		SettingsOnly: cmd.Annotations[settingsOnly] == "true",
	}
}

func teardown(_ *cobra.Command, _ []string) error {
	if !bootstrapped || services == nil {
		return nil
	}
	svc := services
	services = nil
	bootstrapped = false
	if svc.Close != nil {
		return svc.Close()
	}
	return nil
}
