package driving

import "github.com/custodia-labs/catalog-sync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, then the config file,
	// then environment overrides.
	Get() (*domain.Settings, error)

	// Set validates and persists a single setting by its config key.
	Set(key, value string) error

	// Keys lists the recognised config keys in display order.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
