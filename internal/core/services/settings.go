package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyCatalogBaseURL   = "catalog.base_url"
	KeyCatalogToken     = "catalog.token"
	KeyCatalogPerPage   = "catalog.per_page"
	KeyCatalogRate      = "catalog.rate_per_second"
	KeyCatalogBurst     = "catalog.burst"
	KeySyncWorkers      = "sync.workers"
	KeySyncInterval     = "sync.watch_interval"
	KeyStorageDataDir   = "storage.data_dir"
	KeyNotifyWebhookURL = "notify.webhook_url"
	KeyImagesEndpoint   = "images.endpoint"
	KeyImagesBucket     = "images.bucket"
	KeyImagesAccessKey  = "images.access_key"
	KeyImagesSecretKey  = "images.secret_key"
	KeyImagesSecure     = "images.secure"
)

// Environment overrides.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvCatalogToken   = "CATALOG_TOKEN"
	EnvCatalogBaseURL = "CATALOG_BASE_URL"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

var settingKeys = []struct {
	key  string
	kind keyKind
}{
	{KeyCatalogBaseURL, kindString},
	{KeyCatalogToken, kindString},
	{KeyCatalogPerPage, kindInt},
	{KeyCatalogRate, kindFloat},
	{KeyCatalogBurst, kindInt},
	{KeySyncWorkers, kindInt},
	{KeySyncInterval, kindDuration},
	{KeyStorageDataDir, kindString},
	{KeyNotifyWebhookURL, kindString},
	{KeyImagesEndpoint, kindString},
	{KeyImagesBucket, kindString},
	{KeyImagesAccessKey, kindString},
	{KeyImagesSecretKey, kindString},
	{KeyImagesSecure, kindBool},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Catalog: domain.CatalogSettings{
			BaseURL:       s.getString(KeyCatalogBaseURL, defaults.Catalog.BaseURL),
			Token:         s.configStore.GetString(KeyCatalogToken),
			PerPage:       s.getInt(KeyCatalogPerPage, defaults.Catalog.PerPage),
			RatePerSecond: s.getFloat(KeyCatalogRate, defaults.Catalog.RatePerSecond),
			Burst:         s.getInt(KeyCatalogBurst, defaults.Catalog.Burst),
		},
		Sync: domain.SyncSettings{
			Workers:       s.getInt(KeySyncWorkers, defaults.Sync.Workers),
			WatchInterval: defaults.Sync.WatchInterval,
		},
		Storage: domain.StorageSettings{
			DataDir: s.configStore.GetString(KeyStorageDataDir),
		},
		Notify: domain.NotifySettings{
			WebhookURL: s.configStore.GetString(KeyNotifyWebhookURL),
		},
		Images: domain.ImageSettings{
			Endpoint:  s.configStore.GetString(KeyImagesEndpoint),
			Bucket:    s.configStore.GetString(KeyImagesBucket),
			AccessKey: s.configStore.GetString(KeyImagesAccessKey),
			SecretKey: s.configStore.GetString(KeyImagesSecretKey),
			Secure:    s.getBool(KeyImagesSecure, defaults.Images.Secure),
		},
	}

	if interval := s.configStore.GetString(KeySyncInterval); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, KeySyncInterval, err)
		}
		settings.Sync.WatchInterval = d
	}

	// Environment wins over the config file
	if v := s.getenv(EnvCatalogToken); v != "" {
		settings.Catalog.Token = v
	}
	if v := s.getenv(EnvCatalogBaseURL); v != "" {
		settings.Catalog.BaseURL = v
	}

	return settings, nil
}

// Set parses value according to the key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	for _, k := range settingKeys {
		if k.key != key {
			continue
		}
		parsed, err := parseSetting(k.kind, value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		return s.configStore.Set(key, parsed)
	}
	return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// Keys lists the recognised config keys.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

func parseSetting(kind keyKind, value string) (any, error) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return value, nil
	}
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if val := s.configStore.GetInt(key); val != 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if val := s.configStore.GetFloat(key); val != 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetBool(key)
	}
	return defaultVal
}
