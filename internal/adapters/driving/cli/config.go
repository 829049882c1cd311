package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "View and change settings",
	Annotations: map[string]string{settingsOnly: "true"},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show effective settings",
	Annotations: map[string]string{settingsOnly: "true"},
	RunE:        runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Stores a value in config.toml. Keys use dot notation, for example:

  catalog-sync config set catalog.base_url https://records.example.org/api
  catalog-sync config set sync.workers 8
  catalog-sync config set sync.watch_interval 30m`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{settingsOnly: "true"},
	RunE:        runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Settings == nil {
		return errors.New("settings service not configured")
	}

	settings, err := services.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	out := cmd.OutOrStdout()
	printLabel(out, "catalog.base_url", settings.Catalog.BaseURL)
	printLabel(out, "catalog.token", maskSecret(settings.Catalog.Token))
	printLabel(out, "catalog.per_page", fmt.Sprint(settings.Catalog.PerPage))
	printLabel(out, "catalog.rate_per_second", fmt.Sprint(settings.Catalog.RatePerSecond))
	printLabel(out, "catalog.burst", fmt.Sprint(settings.Catalog.Burst))
	printLabel(out, "sync.workers", fmt.Sprint(settings.Sync.Workers))
	printLabel(out, "sync.watch_interval", settings.Sync.WatchInterval.String())
	printLabel(out, "storage.data_dir", orDefault(settings.Storage.DataDir))
	printLabel(out, "notify.webhook_url", orUnset(settings.Notify.WebhookURL))
	if settings.Images.Enabled() {
		printLabel(out, "images.endpoint", settings.Images.Endpoint)
		printLabel(out, "images.bucket", settings.Images.Bucket)
		printLabel(out, "images.access_key", maskSecret(settings.Images.AccessKey))
		printLabel(out, "images.secret_key", maskSecret(settings.Images.SecretKey))
		printLabel(out, "images.secure", fmt.Sprint(settings.Images.Secure))
	} else {
		printLabel(out, "images", "(mirroring disabled)")
	}

	if err := settings.Validate(); err != nil {
		printWarning(out, "%v", err)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if services == nil || services.Settings == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := services.Settings.Set(key, value); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return fmt.Errorf("%w\nknown keys: %s", err, strings.Join(services.Settings.Keys(), ", "))
		}
		return fmt.Errorf("failed to save setting: %w", err)
	}
	printSuccess(cmd.OutOrStdout(), "Set %s", key)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
