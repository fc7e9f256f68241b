package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OpenPhone OpenPhoneConfig `yaml:"openphone"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Distance  DistanceConfig  `yaml:"distance"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Storage   StorageConfig   `yaml:"storage"`
	Property  PropertyConfig  `yaml:"property"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// OpenPhoneConfig holds communications provider configuration.
// APIKeys may list several keys; each key scopes an independent account
// whose phone numbers are all considered during aggregation.
type OpenPhoneConfig struct {
	APIKeys          []string `yaml:"api_keys"`
	BaseURL          string   `yaml:"base_url"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	RequestSpacingMS int      `yaml:"request_spacing_ms"`
	MaxRetries       int      `yaml:"max_retries"`
	PageSize         int      `yaml:"page_size"`
	EventCap         int      `yaml:"event_cap"`
	Timezone         string   `yaml:"timezone"`
	Workers          int      `yaml:"workers"`
	Enabled          bool     `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c OpenPhoneConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RequestSpacing returns the minimum delay between consecutive requests
func (c OpenPhoneConfig) RequestSpacing() time.Duration {
	return time.Duration(c.RequestSpacingMS) * time.Millisecond
}

// GeocodeConfig holds geocoding provider configuration
type GeocodeConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c GeocodeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DistanceConfig holds driving-distance provider configuration
type DistanceConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c DistanceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EnrichConfig holds batch enrichment configuration
type EnrichConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// StorageConfig holds job/cache store configuration.
// Type selects the backend: "memory" or "redis". DatabaseURL additionally
// enables the postgres job archive alongside either backend.
type StorageConfig struct {
	Type            string `yaml:"type"`
	RedisURL        string `yaml:"redis_url"`
	DatabaseURL     string `yaml:"database_url"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// CacheTTL returns the aggregate-cache TTL as a duration
func (c StorageConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// PropertyConfig holds the property origin used for driving distances
type PropertyConfig struct {
	Name      string  `yaml:"name"`
	Address   string  `yaml:"address"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.OpenPhone.BaseURL == "" {
		cfg.OpenPhone.BaseURL = "https://api.openphone.com/v1"
	}
	if cfg.OpenPhone.TimeoutSeconds == 0 {
		cfg.OpenPhone.TimeoutSeconds = 30
	}
	if cfg.OpenPhone.RequestSpacingMS == 0 {
		cfg.OpenPhone.RequestSpacingMS = 200
	}
	if cfg.OpenPhone.MaxRetries == 0 {
		cfg.OpenPhone.MaxRetries = 5
	}
	if cfg.OpenPhone.PageSize == 0 {
		cfg.OpenPhone.PageSize = 50
	}
	if cfg.OpenPhone.EventCap == 0 {
		cfg.OpenPhone.EventCap = 100
	}
	if cfg.OpenPhone.Timezone == "" {
		cfg.OpenPhone.Timezone = "America/New_York"
	}
	if cfg.OpenPhone.Workers == 0 {
		cfg.OpenPhone.Workers = 5
	}
	if cfg.Geocode.BaseURL == "" {
		cfg.Geocode.BaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	if cfg.Geocode.TimeoutSeconds == 0 {
		cfg.Geocode.TimeoutSeconds = 30
	}
	if cfg.Distance.BaseURL == "" {
		cfg.Distance.BaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	}
	if cfg.Distance.TimeoutSeconds == 0 {
		cfg.Distance.TimeoutSeconds = 30
	}
	if cfg.Enrich.ChunkSize == 0 {
		cfg.Enrich.ChunkSize = 1500
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Storage.CacheTTLMinutes == 0 {
		cfg.Storage.CacheTTLMinutes = 60
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if keys := os.Getenv("OPENPHONE_API_KEYS"); keys != "" {
		cfg.OpenPhone.APIKeys = splitAndTrim(keys)
		cfg.OpenPhone.Enabled = true
	}
	if baseURL := os.Getenv("OPENPHONE_BASE_URL"); baseURL != "" {
		cfg.OpenPhone.BaseURL = baseURL
	}
	if apiKey := os.Getenv("GEOCODE_API_KEY"); apiKey != "" {
		cfg.Geocode.APIKey = apiKey
		cfg.Geocode.Enabled = true
	}
	if apiKey := os.Getenv("DISTANCE_API_KEY"); apiKey != "" {
		cfg.Distance.APIKey = apiKey
		cfg.Distance.Enabled = true
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Storage.RedisURL = redisURL
		if cfg.Storage.Type == "memory" {
			cfg.Storage.Type = "redis"
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Storage.DatabaseURL = dbURL
	}
	if addr := os.Getenv("PROPERTY_ADDRESS"); addr != "" {
		cfg.Property.Address = addr
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
