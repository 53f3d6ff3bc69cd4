package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PIPEDRIVE_API_TOKEN", "test-token")

	cfg, err := Load("test-version")
	require.NoError(t, err)

	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "https://api.pipedrive.com/v1", cfg.Pipedrive.BaseURL)
	assert.Equal(t, 100, cfg.Pipedrive.PageLimit)
	assert.Equal(t, 3, cfg.Pipedrive.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Pipedrive.InitialBackoff)
	assert.Equal(t, 30*time.Minute, cfg.Sync.RunTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PIPEDRIVE_API_TOKEN", "test-token")
	t.Setenv("PIPEDRIVE_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("PIPEDRIVE_PAGE_LIMIT", "50")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPASSWORD", "secret")
	t.Setenv("SYNC_RUN_TIMEOUT", "5m")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v1", cfg.Pipedrive.BaseURL)
	assert.Equal(t, 50, cfg.Pipedrive.PageLimit)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RunTimeout)
}

func TestLoad_MissingAPIToken(t *testing.T) {
	t.Setenv("PIPEDRIVE_API_TOKEN", "")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPEDRIVE_API_TOKEN")
}

func TestLoad_InvalidPageLimit(t *testing.T) {
	t.Setenv("PIPEDRIVE_API_TOKEN", "test-token")
	t.Setenv("PIPEDRIVE_PAGE_LIMIT", "0")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_limit")
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "crm",
		Password: "pw",
		Database: "crm",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=crm password=pw dbname=crm sslmode=disable",
		c.ConnectionString())
	assert.Equal(t,
		"postgres://crm:pw@localhost:5432/crm?sslmode=disable",
		c.URL())
}
