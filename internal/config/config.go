package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the relay configuration. Environment variables are parsed
// from the VAULTWIRE_ prefix, e.g. VAULTWIRE_HTTP_PORT, VAULTWIRE_STORE_DRIVER.
type Config struct {
	// HTTP configuration (the WebSocket endpoint shares this listener)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Store driver: memory, sqlite, or postgres. "auto" picks sqlite.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/vaultwire.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Retention window for undelivered envelopes, and sweep cadence.
	RetentionDays        int `envconfig:"RETENTION_DAYS" default:"7"`
	SweepIntervalSeconds int `envconfig:"SWEEP_INTERVAL_SECONDS" default:"3600"`

	// Server timeouts
	ReadTimeoutSeconds  int `envconfig:"READ_TIMEOUT_SECONDS" default:"15"`
	WriteTimeoutSeconds int `envconfig:"WRITE_TIMEOUT_SECONDS" default:"15"`
}

// ResolveDefaults validates StoreDriver and derives it when set to "auto".
func (c *Config) ResolveDefaults() error {
	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		c.StoreDriver = "sqlite"
	}
	allowed := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !allowed[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("VAULTWIRE_POSTGRES_DSN is required when STORE_DRIVER=postgres")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	return nil
}

// New creates a Config by parsing VAULTWIRE_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("VAULTWIRE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("store_driver", cfg.StoreDriver).
		Int("http_port", cfg.HTTPPort).
		Int("retention_days", cfg.RetentionDays).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Msg("configuration loaded")

	return &cfg, nil
}

// NewForTesting returns an isolated in-memory configuration.
func NewForTesting() *Config {
	return &Config{
		HTTPPort:             8080,
		StoreDriver:          "memory",
		RetentionDays:        7,
		SweepIntervalSeconds: 3600,
		ReadTimeoutSeconds:   15,
		WriteTimeoutSeconds:  15,
	}
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// Retention returns the envelope retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// SweepInterval returns the retention sweep cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
