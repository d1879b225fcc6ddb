// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the engine configuration that can be loaded from a JSON
// file or environment variables. All fields are optional; missing values use
// defaults or must be provided via CLI flags.
type Config struct {
	DatabaseURL     string  `json:"database_url,omitempty"`     // PostgreSQL connection URL
	SessionDir      string  `json:"session_dir,omitempty"`      // Directory for persisted browser sessions
	SessionKey      string  `json:"session_key,omitempty"`      // Hex-encoded 32-byte key for session blob encryption
	PhoneFallback   string  `json:"phone_fallback,omitempty"`   // Value substituted for unusable phone numbers
	CoverageMinimum float64 `json:"coverage_minimum,omitempty"` // Minimum payment/parent match fraction before warning
	PageTimeoutSecs int     `json:"page_timeout_secs,omitempty"`
	Verbose         bool    `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. godotenv is expected to
// have been loaded by the caller.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL:   os.Getenv("STORESYNC_DATABASE_URL"),
		SessionDir:    os.Getenv("STORESYNC_SESSION_DIR"),
		SessionKey:    os.Getenv("STORESYNC_SESSION_KEY"),
		PhoneFallback: os.Getenv("STORESYNC_PHONE_FALLBACK"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("STORESYNC_COVERAGE_MIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CoverageMinimum = f
		}
	}
	if v := os.Getenv("STORESYNC_PAGE_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageTimeoutSecs = n
		}
	}
	return cfg
}

// Validate checks that the configuration has valid values.
// Note: required fields are enforced by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.CoverageMinimum < 0 || c.CoverageMinimum > 1 {
		return fmt.Errorf("config error: 'coverage_minimum' must be between 0 and 1")
	}
	if c.PageTimeoutSecs < 0 {
		return fmt.Errorf("config error: 'page_timeout_secs' must be non-negative")
	}
	if c.SessionKey != "" && len(c.SessionKey) != 64 {
		return fmt.Errorf("config error: 'session_key' must be 64 hex characters (32 bytes)")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. This is used to apply env/file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.SessionDir == "" {
		result.SessionDir = defaults.SessionDir
	}
	if result.SessionDir == "" {
		result.SessionDir = ".storesync/sessions"
	}
	if result.SessionKey == "" {
		result.SessionKey = defaults.SessionKey
	}
	if result.PhoneFallback == "" {
		result.PhoneFallback = defaults.PhoneFallback
	}
	if result.PhoneFallback == "" {
		result.PhoneFallback = "9999999999"
	}

	if result.CoverageMinimum == 0 {
		if defaults.CoverageMinimum > 0 {
			result.CoverageMinimum = defaults.CoverageMinimum
		} else {
			result.CoverageMinimum = 0.8
		}
	}
	if result.PageTimeoutSecs == 0 {
		if defaults.PageTimeoutSecs > 0 {
			result.PageTimeoutSecs = defaults.PageTimeoutSecs
		} else {
			result.PageTimeoutSecs = 45
		}
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
