package config

import "time"

// Default values for configuration fields.
const (
	// Dispatch defaults
	DefaultMaxRetries                 = 3
	DefaultBackoffBase                = 500 * time.Millisecond
	DefaultBackoffFactor              = 2.0
	DefaultBackoffMax                 = 30 * time.Second
	DefaultBackoffJitter              = 0.1
	DefaultAcquireTimeout             = 30 * time.Second
	DefaultMaxConcurrent              = 8
	DefaultMaxConsecutiveDegradations = 5

	// History defaults
	DefaultHistoryBackend    = "memory"
	DefaultHistorySQLitePath = "data/history.db"
	DefaultHistoryBufferSize = 1000
	DefaultHistoryRetention  = 7 * 24 * time.Hour

	// Janitor defaults
	DefaultJanitorIdleTTL = time.Hour
)

// DefaultConfig returns a configuration with every default applied and no
// limiters defined.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Configured values
// are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Limiters == nil {
		cfg.Limiters = make(map[string]LimiterConfig)
	}

	d := &cfg.Dispatch
	if d.MaxRetries == 0 {
		d.MaxRetries = DefaultMaxRetries
	}
	if d.BackoffBase <= 0 {
		d.BackoffBase = DefaultBackoffBase
	}
	if d.BackoffFactor == 0 {
		d.BackoffFactor = DefaultBackoffFactor
	}
	if d.BackoffMax <= 0 {
		d.BackoffMax = DefaultBackoffMax
	}
	if d.BackoffJitter == 0 {
		d.BackoffJitter = DefaultBackoffJitter
	}
	if d.AcquireTimeout <= 0 {
		d.AcquireTimeout = DefaultAcquireTimeout
	}
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = DefaultMaxConcurrent
	}
	if d.MaxConsecutiveDegradations == 0 {
		d.MaxConsecutiveDegradations = DefaultMaxConsecutiveDegradations
	}

	h := &cfg.History
	if h.Backend == "" {
		h.Backend = DefaultHistoryBackend
	}
	if h.SQLitePath == "" {
		h.SQLitePath = DefaultHistorySQLitePath
	}
	if h.BufferSize <= 0 {
		h.BufferSize = DefaultHistoryBufferSize
	}
	if h.Retention <= 0 {
		h.Retention = DefaultHistoryRetention
	}

	if cfg.Janitor.IdleTTL <= 0 {
		cfg.Janitor.IdleTTL = DefaultJanitorIdleTTL
	}
}
