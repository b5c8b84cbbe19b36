package ratelimit

import (
	"context"
	"time"
)

// Limiter is the capability contract shared by all rate limiting strategies.
//
// Acquire and Wait consume capacity atomically: either all n units are
// consumed or none are. Available is informational and may be stale the
// instant after reading.
type Limiter interface {
	// Acquire attempts to consume n units without blocking.
	// Returns true if the units were available and consumed.
	Acquire(n int64) bool

	// Wait blocks until n units are available and consumed, the timeout
	// elapses, or ctx is canceled. Returns false on timeout or
	// cancellation without consuming partial units. A non-positive
	// timeout degrades to a single non-blocking attempt.
	Wait(ctx context.Context, n int64, timeout time.Duration) bool

	// Available returns the current available capacity.
	Available() float64

	// Reset restores full capacity and clears window state.
	Reset()

	// Strategy returns the strategy this limiter was constructed with.
	Strategy() Strategy
}

// New constructs a limiter for the given strategy.
//
// Defaults are applied for zero-valued fields so the limiter is usable with
// only a Rate configured: Per defaults to one second, Capacity to the rate
// rounded up, and Window to one second.
//
// Example:
//
//	// 2 image calls/sec smoothed, queue bound 10
//	lim, err := ratelimit.New(ratelimit.StrategyLeakyBucket, ratelimit.Config{
//	    Rate:     2,
//	    Capacity: 10,
//	})
func New(strategy Strategy, cfg Config) (Limiter, error) {
	if cfg.Rate <= 0 {
		return nil, &ConfigError{Strategy: strategy, Field: "rate", Message: "must be positive"}
	}
	if cfg.Per < 0 {
		return nil, &ConfigError{Strategy: strategy, Field: "per", Message: "must not be negative"}
	}

	switch strategy {
	case StrategyTokenBucket:
		capacity, err := defaultCapacity(strategy, cfg)
		if err != nil {
			return nil, err
		}
		return NewTokenBucket(capacity, cfg.ratePerSecond()), nil

	case StrategyFixedWindow:
		window, limit, err := windowParams(strategy, cfg)
		if err != nil {
			return nil, err
		}
		return NewFixedWindow(limit, window), nil

	case StrategySlidingWindow:
		window, limit, err := windowParams(strategy, cfg)
		if err != nil {
			return nil, err
		}
		return NewSlidingWindow(limit, window), nil

	case StrategyLeakyBucket:
		capacity, err := defaultCapacity(strategy, cfg)
		if err != nil {
			return nil, err
		}
		return NewLeakyBucket(capacity, cfg.ratePerSecond()), nil

	default:
		return nil, &ConfigError{Strategy: strategy, Field: "strategy", Message: "unknown strategy"}
	}
}

// defaultCapacity resolves the capacity for bucket-based strategies.
func defaultCapacity(strategy Strategy, cfg Config) (float64, error) {
	if cfg.Capacity < 0 {
		return 0, &ConfigError{Strategy: strategy, Field: "capacity", Message: "must not be negative"}
	}
	if cfg.Capacity == 0 {
		// Default burst ceiling: one period's worth of units
		capacity := cfg.Rate
		if capacity < 1 {
			capacity = 1
		}
		return capacity, nil
	}
	return float64(cfg.Capacity), nil
}

// windowParams resolves the window size and per-window limit for
// window-based strategies. The per-window limit is the configured rate
// interpreted over the window.
func windowParams(strategy Strategy, cfg Config) (time.Duration, int64, error) {
	if cfg.Window < 0 {
		return 0, 0, &ConfigError{Strategy: strategy, Field: "window", Message: "must not be negative"}
	}
	window := cfg.Window
	if window == 0 {
		window = time.Second
	}
	limit := int64(cfg.Rate)
	if limit < 1 {
		limit = 1
	}
	return window, limit, nil
}

// waitForTokens runs the shared timed-wait loop used by all strategies.
//
// attempt performs one locked acquisition try and, on failure, reports the
// estimated delay until the attempt is worth repeating. A negative estimate
// means the request can never be satisfied. The loop suspends on a timer
// between attempts; it never holds any limiter lock while suspended and it
// fails fast when the estimated delay would overrun the remaining timeout.
func waitForTokens(ctx context.Context, timeout time.Duration, attempt func() (bool, time.Duration)) bool {
	deadline := time.Now().Add(timeout)

	for {
		ok, eta := attempt()
		if ok {
			return true
		}
		if eta < 0 {
			// Request exceeds what this limiter can ever grant
			return false
		}

		remaining := time.Until(deadline)
		if eta > remaining {
			// Waiting out the estimate would overrun the caller's budget
			return false
		}

		// Floor the sleep so float rounding cannot produce a hot loop
		if eta < time.Millisecond {
			eta = time.Millisecond
		}

		timer := time.NewTimer(eta)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
			// Re-check: a competing caller may have taken the capacity
			// the refill produced while we slept.
		}
	}
}
