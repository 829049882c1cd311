package main

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/blob/minio"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/notify/webhook"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/catalog-sync/internal/adapters/driving/cli"
	"github.com/custodia-labs/catalog-sync/internal/connectors/catalog"
	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
	"github.com/custodia-labs/catalog-sync/internal/core/services"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// bootstrap wires adapters and services from config and command line overrides.
func bootstrap(opts cli.BootstrapOptions) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if opts.DataDir != "" {
		settings.Storage.DataDir = opts.DataDir
	}
	if opts.Workers > 0 {
		settings.Sync.Workers = opts.Workers
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", configStore.Path(), err)
	}

	store, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug("store: %s", store.Path())

	client := catalog.NewClient(context.Background(), catalog.ConfigFromSettings(settings.Catalog))

	syncOpts := []services.Option{services.WithWorkers(settings.Sync.Workers)}
	if settings.Images.Enabled() {
		mirror, err := minio.New(settings.Images)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		syncOpts = append(syncOpts, services.WithImageMirror(mirror))
	}
	orchestrator := services.NewSyncOrchestrator(client, store.RecordStore(), syncOpts...)

	var notifier driven.Notifier
	if settings.Notify.WebhookURL != "" {
		notifier = webhook.New(settings.Notify.WebhookURL)
	}

	history := store.HistoryStore()
	return &cli.Services{
		Sync:     orchestrator,
		Settings: settingsService,
		Records:  store.RecordStore(),
		History:  history,
		Notifier: notifier,
		NewScheduler: func(interval time.Duration, hook func(domain.RunRecord)) driving.Scheduler {
			schedOpts := []services.SchedulerOption{services.WithRunHook(hook)}
			if notifier != nil {
				schedOpts = append(schedOpts, services.WithNotifier(notifier))
			}
			return services.NewScheduler(interval, orchestrator, history, schedOpts...)
		},
		WatchInterval: settings.Sync.WatchInterval,
		ConfigChanges: file.NewWatcher(configStore.Path()).Watch,
		Close:         store.Close,
	}, nil
}
