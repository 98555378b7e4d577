// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Store    StoreConfig    `mapstructure:"store"`
	Publish  PublishConfig  `mapstructure:"publish"`
	API      APIConfig      `mapstructure:"api"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs the scheduled fetch cycle.
type ScraperConfig struct {
	IntervalMinutes int      `mapstructure:"interval_minutes"`
	Concurrency     int      `mapstructure:"concurrency"`
	MaxAttempts     int      `mapstructure:"max_attempts"`
	BackoffBaseMs   int      `mapstructure:"backoff_base_ms"`
	BackoffMaxMs    int      `mapstructure:"backoff_max_ms"`
	Highways        []string `mapstructure:"highways"`
}

// UpstreamConfig points at the highway authority catalog endpoint.
type UpstreamConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	Referer        string `mapstructure:"referer"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig selects and parameterizes the image byte store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// StoreConfig controls access to the metadata store.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	MaxRetries int    `mapstructure:"max_retries"`
	BackoffMs  int    `mapstructure:"backoff_ms"`
}

// PublishConfig selects the capture-event publisher.
type PublishConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// APIConfig bounds read-path result sizes.
type APIConfig struct {
	HardLimit   int `mapstructure:"hard_limit"`
	LegacyLimit int `mapstructure:"legacy_limit"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CCTV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8089)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.interval_minutes", 5)
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.backoff_base_ms", 500)
	v.SetDefault("scraper.backoff_max_ms", 5000)
	v.SetDefault("upstream.base_url", "https://www.llm.gov.my/assets/ajax.vigroot.php")
	v.SetDefault("upstream.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("upstream.referer", "https://www.llm.gov.my/")
	v.SetDefault("upstream.timeout_seconds", 30)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "storage/images")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.backoff_ms", 200)
	v.SetDefault("publish.provider", "noop")
	v.SetDefault("api.hard_limit", 500)
	v.SetDefault("api.legacy_limit", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.IntervalMinutes <= 0 {
		return fmt.Errorf("scraper.interval_minutes must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.MaxAttempts <= 0 {
		return fmt.Errorf("scraper.max_attempts must be > 0")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	switch c.Publish.Provider {
	case "noop":
	case "pubsub":
		if c.Publish.ProjectID == "" || c.Publish.Topic == "" {
			return fmt.Errorf("publish.project_id and publish.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown publish provider: %s", c.Publish.Provider)
	}
	for _, code := range c.Scraper.Highways {
		if _, ok := Highways[code]; !ok {
			return fmt.Errorf("unknown highway code in scraper.highways: %s", code)
		}
	}
	return nil
}

// Interval converts the scrape interval into a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Scraper.IntervalMinutes) * time.Minute
}

// BackoffBase converts the retry backoff base into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Scraper.BackoffBaseMs) * time.Millisecond
}

// BackoffMax converts the retry backoff cap into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Scraper.BackoffMaxMs) * time.Millisecond
}

// UpstreamTimeout converts the upstream timeout into a duration.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// StoreBackoff converts the store retry backoff into a duration.
func (c Config) StoreBackoff() time.Duration {
	return time.Duration(c.Store.BackoffMs) * time.Millisecond
}

// ActiveHighways resolves the configured highway subset, defaulting to the
// full built-in catalog.
func (c Config) ActiveHighways() []string {
	if len(c.Scraper.Highways) > 0 {
		return c.Scraper.Highways
	}
	return HighwayCodes()
}
