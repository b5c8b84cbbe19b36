package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses YAML configuration bytes, applies defaults, and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention CALLISTO_SECTION_FIELD (e.g., CALLISTO_DISPATCH_MAX_RETRIES)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after env overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overlays CALLISTO_* environment variables onto cfg.
// Malformed values are ignored: the file/default value stays in effect.
func applyEnvOverrides(cfg *Config) {
	setInt("CALLISTO_DISPATCH_MAX_RETRIES", &cfg.Dispatch.MaxRetries)
	setInt("CALLISTO_DISPATCH_MAX_CONCURRENT", &cfg.Dispatch.MaxConcurrent)
	setInt("CALLISTO_DISPATCH_MAX_CONSECUTIVE_DEGRADATIONS", &cfg.Dispatch.MaxConsecutiveDegradations)
	setDuration("CALLISTO_DISPATCH_BACKOFF_BASE", &cfg.Dispatch.BackoffBase)
	setDuration("CALLISTO_DISPATCH_BACKOFF_MAX", &cfg.Dispatch.BackoffMax)
	setFloat("CALLISTO_DISPATCH_BACKOFF_FACTOR", &cfg.Dispatch.BackoffFactor)
	setFloat("CALLISTO_DISPATCH_BACKOFF_JITTER", &cfg.Dispatch.BackoffJitter)
	setDuration("CALLISTO_DISPATCH_ACQUIRE_TIMEOUT", &cfg.Dispatch.AcquireTimeout)

	setBool("CALLISTO_HISTORY_ENABLED", &cfg.History.Enabled)
	setString("CALLISTO_HISTORY_BACKEND", &cfg.History.Backend)
	setString("CALLISTO_HISTORY_SQLITE_PATH", &cfg.History.SQLitePath)
	setInt("CALLISTO_HISTORY_BUFFER_SIZE", &cfg.History.BufferSize)
	setDuration("CALLISTO_HISTORY_RETENTION", &cfg.History.Retention)

	setString("CALLISTO_JANITOR_SCHEDULE", &cfg.Janitor.Schedule)
	setDuration("CALLISTO_JANITOR_IDLE_TTL", &cfg.Janitor.IdleTTL)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
