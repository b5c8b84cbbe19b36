package config

import (
	"time"
)

// Config is the root configuration for the core.
type Config struct {
	// Limiters maps limiter names to their configurations. One limiter
	// per external resource class (e.g., "chat-api-requests").
	Limiters map[string]LimiterConfig `yaml:"limiters"`

	// Dispatch configures the dispatcher and batch dispatcher defaults.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// History configures dispatch outcome recording.
	History HistoryConfig `yaml:"history"`

	// Janitor configures idle limiter sweeping.
	Janitor JanitorConfig `yaml:"janitor"`
}

// LimiterConfig configures a single named limiter.
type LimiterConfig struct {
	// Strategy selects the rate limiting algorithm: "token_bucket",
	// "fixed_window", "sliding_window", or "leaky_bucket".
	Strategy string `yaml:"strategy"`

	// Rate is the sustained rate in units per Per.
	Rate float64 `yaml:"rate"`

	// Per is the period Rate is expressed over. Defaults to one second.
	Per time.Duration `yaml:"per"`

	// Capacity is the burst ceiling (token bucket) or queue bound
	// (leaky bucket).
	Capacity int64 `yaml:"capacity"`

	// Window is the window size for fixed and sliding window strategies.
	Window time.Duration `yaml:"window"`
}

// DispatchConfig configures dispatcher retry, backoff, and concurrency
// defaults.
type DispatchConfig struct {
	// Limiters are the default limiter names acquired per dispatch,
	// primary first.
	Limiters []string `yaml:"limiters"`

	// MaxRetries is the retry budget per dispatch.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffFactor is the exponential growth factor between retries.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// BackoffMax caps the computed backoff delay.
	BackoffMax time.Duration `yaml:"backoff_max"`

	// BackoffJitter randomizes each delay by up to this fraction.
	BackoffJitter float64 `yaml:"backoff_jitter"`

	// AcquireTimeout bounds each limiter token wait.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// MaxConcurrent is the batch dispatcher concurrency budget.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxConsecutiveDegradations bounds how many dispatches in a row
	// may proceed with a reduced secondary reservation.
	MaxConsecutiveDegradations int `yaml:"max_consecutive_degradations"`
}

// HistoryConfig configures dispatch outcome recording.
type HistoryConfig struct {
	// Enabled turns outcome recording on.
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// BufferSize is the async recorder buffer size. Records are dropped
	// (and counted) when the buffer is full; recording never blocks a
	// dispatch.
	BufferSize int `yaml:"buffer_size"`

	// Retention is how long records are kept before pruning.
	Retention time.Duration `yaml:"retention"`
}

// JanitorConfig configures idle limiter sweeping.
type JanitorConfig struct {
	// Schedule is a standard cron expression for sweep runs. Empty
	// disables the janitor.
	Schedule string `yaml:"schedule"`

	// IdleTTL is how long a limiter may go unused before removal.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}
