package domain

import (
	"fmt"
	"net/url"
	"time"
)

// Default settings values.
const (
	DefaultBaseURL       = "https://api.catalog.example.com/v1"
	DefaultPerPage       = 100
	DefaultRatePerSecond = 1.0
	DefaultBurst         = 1
	DefaultWorkers       = 4
	DefaultWatchInterval = 15 * time.Minute
)

// Settings holds the user-facing configuration.
type Settings struct {
	Catalog CatalogSettings
	Sync    SyncSettings
	Storage StorageSettings
	Notify  NotifySettings
	Images  ImageSettings
}

// CatalogSettings configures the remote catalog client.
type CatalogSettings struct {
	BaseURL string

	// Token is sent as a bearer token. Empty for public catalogs.
	Token string

	PerPage int

	// RatePerSecond is the sustained request ceiling.
	RatePerSecond float64
	Burst         int
}

// SyncSettings configures the sync engine.
type SyncSettings struct {
	// Workers is the detail backfill concurrency.
	Workers int

	// WatchInterval is the delay between scheduled incremental runs.
	WatchInterval time.Duration
}

// StorageSettings configures the local record store.
type StorageSettings struct {
	// DataDir holds the SQLite database. Empty uses the default location.
	DataDir string
}

// NotifySettings configures the completion notification.
type NotifySettings struct {
	// WebhookURL receives a JSON summary after each run. Empty disables it.
	WebhookURL string
}

// ImageSettings configures the optional S3-compatible image mirror.
type ImageSettings struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Enabled reports whether image mirroring is configured.
func (s ImageSettings) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// DefaultSettings returns sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Catalog: CatalogSettings{
			BaseURL:       DefaultBaseURL,
			PerPage:       DefaultPerPage,
			RatePerSecond: DefaultRatePerSecond,
			Burst:         DefaultBurst,
		},
		Sync: SyncSettings{
			Workers:       DefaultWorkers,
			WatchInterval: DefaultWatchInterval,
		},
		Images: ImageSettings{
			Secure: true,
		},
	}
}

// Validate checks the settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.Catalog.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: catalog base URL %q", ErrInvalidInput, s.Catalog.BaseURL)
	}
	if s.Catalog.PerPage <= 0 {
		return fmt.Errorf("%w: catalog per_page must be positive", ErrInvalidInput)
	}
	if s.Catalog.RatePerSecond <= 0 {
		return fmt.Errorf("%w: catalog rate_per_second must be positive", ErrInvalidInput)
	}
	if s.Catalog.Burst <= 0 {
		return fmt.Errorf("%w: catalog burst must be positive", ErrInvalidInput)
	}
	if s.Sync.Workers <= 0 {
		return fmt.Errorf("%w: sync workers must be positive", ErrInvalidInput)
	}
	if s.Sync.WatchInterval <= 0 {
		return fmt.Errorf("%w: sync watch_interval must be positive", ErrInvalidInput)
	}
	return nil
}
