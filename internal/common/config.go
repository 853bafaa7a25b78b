// Package common provides shared utilities for LanFund
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for LanFund
type Config struct {
	Environment string        `toml:"environment"`
	Timezone    string        `toml:"timezone"` // IANA zone used to decide "today", default Asia/Shanghai
	Server      ServerConfig  `toml:"server"`
	Backend     BackendConfig `toml:"backend"`
	Storage     StorageConfig `toml:"storage"`
	Refresh     RefreshConfig `toml:"refresh"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BackendConfig holds the fund dashboard backend connection settings
type BackendConfig struct {
	BaseURL   string `toml:"base_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Group     string `toml:"group"` // portfolio table group id, empty selects the default group
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BackendConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// StorageConfig holds the local key-value store location
type StorageConfig struct {
	Path string `toml:"path"`
}

// RefreshConfig controls the periodic page refresher
type RefreshConfig struct {
	Interval string   `toml:"interval"`
	Pages    []string `toml:"pages"`
}

// GetInterval parses and returns the refresh interval
func (c *RefreshConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AuthConfig holds bearer token settings for the local API.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Timezone:    "Asia/Shanghai",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8686,
		},
		Backend: BackendConfig{
			BaseURL:   "http://127.0.0.1:8311",
			RateLimit: 5,
			Timeout:   "30s",
		},
		Storage: StorageConfig{
			Path: "data/kv",
		},
		Refresh: RefreshConfig{
			Interval: "60s",
			Pages:    []string{PagePortfolio},
		},
		Auth: AuthConfig{
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/lanfund.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if _, err := config.Location(); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LANFUND_ENV"); env != "" {
		config.Environment = env
	}

	if tz := os.Getenv("LANFUND_TIMEZONE"); tz != "" {
		config.Timezone = tz
	}

	if host := os.Getenv("LANFUND_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("LANFUND_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("LANFUND_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("LANFUND_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	// Backend overrides
	if v := os.Getenv("LANFUND_BACKEND_URL"); v != "" {
		config.Backend.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("LANFUND_BACKEND_USERNAME"); v != "" {
		config.Backend.Username = v
	}
	if v := os.Getenv("LANFUND_BACKEND_PASSWORD"); v != "" {
		config.Backend.Password = v
	}

	if v := os.Getenv("LANFUND_REFRESH_INTERVAL"); v != "" {
		config.Refresh.Interval = v
	}

	if v := os.Getenv("LANFUND_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Location resolves the configured timezone, falling back to UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
