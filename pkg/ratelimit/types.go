package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Strategy identifies a rate limiting algorithm. The set of strategies is
// closed: a limiter's strategy is chosen once at construction time and
// cannot be swapped afterward.
type Strategy string

const (
	// StrategyTokenBucket refills capacity at a constant rate and allows
	// bursts up to the bucket capacity.
	StrategyTokenBucket Strategy = "token_bucket"

	// StrategyFixedWindow counts accepted units within discrete,
	// periodically-reset time slices.
	StrategyFixedWindow Strategy = "fixed_window"

	// StrategySlidingWindow counts accepted units within a continuously
	// moving trailing time span.
	StrategySlidingWindow Strategy = "sliding_window"

	// StrategyLeakyBucket accepts into a bounded queue drained at a
	// strictly fixed rate, producing no bursts.
	StrategyLeakyBucket Strategy = "leaky_bucket"
)

// ParseStrategy converts a string into a Strategy.
// Returns ErrUnknownStrategy for unrecognized names.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyTokenBucket, StrategyFixedWindow, StrategySlidingWindow, StrategyLeakyBucket:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Config contains construction parameters for a limiter.
//
// Rate is expressed in units per Per (default: per second) and is converted
// internally to units per second. Capacity applies to token bucket and leaky
// bucket; Window applies to fixed window and sliding window.
type Config struct {
	// Rate is the sustained rate in units per Per.
	Rate float64

	// Per is the period Rate is expressed over (e.g., time.Second,
	// time.Minute). Defaults to one second when zero.
	Per time.Duration

	// Capacity is the burst ceiling (token bucket) or queue bound
	// (leaky bucket). Defaults to Rate rounded up when zero.
	Capacity int64

	// Window is the window size for fixed and sliding window strategies.
	// Defaults to one second when zero.
	Window time.Duration
}

// ratePerSecond returns the configured rate normalized to units per second.
func (c Config) ratePerSecond() float64 {
	per := c.Per
	if per <= 0 {
		per = time.Second
	}
	return c.Rate / per.Seconds()
}

// Error values for limiter construction and registry operations.
var (
	// ErrUnknownStrategy is returned for unrecognized strategy names.
	ErrUnknownStrategy = errors.New("unknown rate limit strategy")

	// ErrLimiterExists is returned when adding a limiter under a name
	// that is already registered.
	ErrLimiterExists = errors.New("limiter already registered")

	// ErrLimiterNotFound is returned when looking up a name that has no
	// registered limiter.
	ErrLimiterNotFound = errors.New("limiter not found")
)

// ConfigError describes an invalid limiter configuration field.
type ConfigError struct {
	// Strategy is the strategy being constructed.
	Strategy Strategy

	// Field is the configuration field that is invalid.
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config for field %q: %s", e.Strategy, e.Field, e.Message)
}
