package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

openphone:
  api_keys: ["key-one", "key-two"]
  base_url: "https://api.openphone.com/v1"
  timeout_seconds: 45
  request_spacing_ms: 250
  max_retries: 3
  page_size: 25
  event_cap: 80
  timezone: "America/Chicago"
  workers: 8
  enabled: true

geocode:
  api_key: "geo-key"
  enabled: true

distance:
  api_key: "dist-key"
  enabled: true

enrich:
  chunk_size: 500

storage:
  type: "redis"
  redis_url: "redis://localhost:6379/0"
  cache_ttl_minutes: 30

property:
  name: "Seaside Resort"
  address: "1 Ocean Drive, Beach City, FL 33100"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, []string{"key-one", "key-two"}, cfg.OpenPhone.APIKeys)
	assert.Equal(t, 45, cfg.OpenPhone.TimeoutSeconds)
	assert.Equal(t, 250, cfg.OpenPhone.RequestSpacingMS)
	assert.Equal(t, 3, cfg.OpenPhone.MaxRetries)
	assert.Equal(t, 25, cfg.OpenPhone.PageSize)
	assert.Equal(t, 80, cfg.OpenPhone.EventCap)
	assert.Equal(t, "America/Chicago", cfg.OpenPhone.Timezone)
	assert.Equal(t, 8, cfg.OpenPhone.Workers)
	assert.True(t, cfg.OpenPhone.Enabled)

	assert.Equal(t, "geo-key", cfg.Geocode.APIKey)
	assert.Equal(t, "dist-key", cfg.Distance.APIKey)
	assert.Equal(t, 500, cfg.Enrich.ChunkSize)

	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, 30, cfg.Storage.CacheTTLMinutes)

	assert.Equal(t, "Seaside Resort", cfg.Property.Name)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
openphone:
  api_keys: ["only-key"]
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://api.openphone.com/v1", cfg.OpenPhone.BaseURL)
	assert.Equal(t, 30, cfg.OpenPhone.TimeoutSeconds)
	assert.Equal(t, 200, cfg.OpenPhone.RequestSpacingMS)
	assert.Equal(t, 5, cfg.OpenPhone.MaxRetries)
	assert.Equal(t, 50, cfg.OpenPhone.PageSize)
	assert.Equal(t, 100, cfg.OpenPhone.EventCap)
	assert.Equal(t, "America/New_York", cfg.OpenPhone.Timezone)
	assert.Equal(t, 5, cfg.OpenPhone.Workers)
	assert.Equal(t, 1500, cfg.Enrich.ChunkSize)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 60, cfg.Storage.CacheTTLMinutes)
}

func TestDurationHelpers(t *testing.T) {
	configPath := writeConfig(t, `
openphone:
  timeout_seconds: 10
  request_spacing_ms: 200

storage:
  cache_ttl_minutes: 15
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "10s", cfg.OpenPhone.Timeout().String())
	assert.Equal(t, "200ms", cfg.OpenPhone.RequestSpacing().String())
	assert.Equal(t, "15m0s", cfg.Storage.CacheTTL().String())
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
openphone:
  api_keys: ["file-key"]

storage:
  type: "memory"
`)

	t.Setenv("OPENPHONE_API_KEYS", "env-key-1, env-key-2")
	t.Setenv("GEOCODE_API_KEY", "env-geo")
	t.Setenv("DISTANCE_API_KEY", "env-dist")
	t.Setenv("REDIS_URL", "redis://env-host:6379")
	t.Setenv("DATABASE_URL", "postgres://env-host/insights")
	t.Setenv("PROPERTY_ADDRESS", "2 Harbor Way")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Env overrides win over the file.
	assert.Equal(t, []string{"env-key-1", "env-key-2"}, cfg.OpenPhone.APIKeys)
	assert.True(t, cfg.OpenPhone.Enabled)
	assert.Equal(t, "env-geo", cfg.Geocode.APIKey)
	assert.True(t, cfg.Geocode.Enabled)
	assert.Equal(t, "env-dist", cfg.Distance.APIKey)
	assert.Equal(t, "redis://env-host:6379", cfg.Storage.RedisURL)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "postgres://env-host/insights", cfg.Storage.DatabaseURL)
	assert.Equal(t, "2 Harbor Way", cfg.Property.Address)
}
