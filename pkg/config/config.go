package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the sync engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API token, database password) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Local relational store (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Remote pipeline API (Pipedrive)
	Pipedrive PipedriveConfig `yaml:"pipedrive"`

	// Sync run behavior
	Sync SyncConfig `yaml:"sync"`
}

// DatabaseConfig holds PostgreSQL configuration for the local CRM store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"crm"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"crm"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"5"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// PipedriveConfig holds remote API access configuration.
type PipedriveConfig struct {
	// APIToken authenticates every request as an api_token query parameter.
	APIToken string `yaml:"-" env:"PIPEDRIVE_API_TOKEN"` // Secret - not in YAML
	BaseURL  string `yaml:"base_url" env:"PIPEDRIVE_BASE_URL" env-default:"https://api.pipedrive.com/v1"`
	// PageLimit is the page size for bulk collection fetches.
	PageLimit int `yaml:"page_limit" env:"PIPEDRIVE_PAGE_LIMIT" env-default:"100"`
	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PIPEDRIVE_REQUEST_TIMEOUT" env-default:"30s"`
	// Rate-limit retry policy: MaxAttempts total attempts, backoff starting at
	// InitialBackoff and doubling after each retry.
	MaxAttempts    int           `yaml:"max_attempts" env:"PIPEDRIVE_MAX_ATTEMPTS" env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"PIPEDRIVE_INITIAL_BACKOFF" env-default:"2s"`
}

// SyncConfig holds settings for a sync run.
type SyncConfig struct {
	// RunTimeout bounds the whole run; exponential backoff alone does not
	// bound worst-case duration for a large contact volume.
	RunTimeout time.Duration `yaml:"run_timeout" env:"SYNC_RUN_TIMEOUT" env-default:"30m"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists (the common case for a cron-invoked
// sync), configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipedrive.APIToken == "" {
		return fmt.Errorf("PIPEDRIVE_API_TOKEN is required")
	}
	if c.Pipedrive.PageLimit <= 0 {
		return fmt.Errorf("pipedrive page_limit must be positive, got %d", c.Pipedrive.PageLimit)
	}
	if c.Pipedrive.MaxAttempts <= 0 {
		return fmt.Errorf("pipedrive max_attempts must be positive, got %d", c.Pipedrive.MaxAttempts)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the postgres:// form of the connection string, used by the
// migration runner.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}
