package config

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"mercator-hq/callisto/pkg/ratelimit"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first problem found with enough context to fix it.
func Validate(cfg *Config) error {
	for name, lc := range cfg.Limiters {
		if err := validateLimiter(name, lc); err != nil {
			return err
		}
	}

	d := cfg.Dispatch
	if d.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must not be negative, got %d", d.MaxRetries)
	}
	if d.BackoffFactor < 1 {
		return fmt.Errorf("dispatch.backoff_factor must be at least 1, got %g", d.BackoffFactor)
	}
	if d.BackoffJitter < 0 || d.BackoffJitter > 1 {
		return fmt.Errorf("dispatch.backoff_jitter must be in [0, 1], got %g", d.BackoffJitter)
	}
	for _, name := range d.Limiters {
		if _, ok := cfg.Limiters[name]; !ok {
			return fmt.Errorf("dispatch.limiters references undefined limiter %q", name)
		}
	}

	switch cfg.History.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("history.backend must be \"memory\" or \"sqlite\", got %q", cfg.History.Backend)
	}

	if cfg.Janitor.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Janitor.Schedule); err != nil {
			return fmt.Errorf("invalid janitor.schedule %q: %w", cfg.Janitor.Schedule, err)
		}
	}

	return nil
}

// validateLimiter checks a single limiter configuration.
func validateLimiter(name string, lc LimiterConfig) error {
	strategy, err := ratelimit.ParseStrategy(lc.Strategy)
	if err != nil {
		return fmt.Errorf("limiter %q: %w", name, err)
	}
	if lc.Rate <= 0 {
		return fmt.Errorf("limiter %q: rate must be positive, got %g", name, lc.Rate)
	}
	if lc.Per < 0 {
		return fmt.Errorf("limiter %q: per must not be negative, got %s", name, lc.Per)
	}
	if lc.Capacity < 0 {
		return fmt.Errorf("limiter %q: capacity must not be negative, got %d", name, lc.Capacity)
	}
	if lc.Window < 0 {
		return fmt.Errorf("limiter %q: window must not be negative, got %s", name, lc.Window)
	}

	switch strategy {
	case ratelimit.StrategyFixedWindow, ratelimit.StrategySlidingWindow:
		if lc.Capacity != 0 {
			return fmt.Errorf("limiter %q: capacity does not apply to %s, use window", name, strategy)
		}
	case ratelimit.StrategyTokenBucket, ratelimit.StrategyLeakyBucket:
		if lc.Window != 0 {
			return fmt.Errorf("limiter %q: window does not apply to %s, use capacity", name, strategy)
		}
	}

	return nil
}

// RateLimitConfig converts a LimiterConfig into the ratelimit package's
// construction parameters.
func (lc LimiterConfig) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Rate:     lc.Rate,
		Per:      lc.Per,
		Capacity: lc.Capacity,
		Window:   lc.Window,
	}
}
