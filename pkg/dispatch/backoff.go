package dispatch

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default backoff parameters.
const (
	DefaultBackoffBase   = 500 * time.Millisecond
	DefaultBackoffFactor = 2.0
	DefaultBackoffMax    = 30 * time.Second
	DefaultBackoffJitter = 0.1
)

// Backoff computes the delay inserted between successive retry attempts.
// The delay grows exponentially with the attempt number, is capped at Max,
// and is randomized by the jitter fraction to avoid synchronized retries
// across callers.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Factor is the multiplier applied per retry (e.g., 2.0 doubles the
	// delay each time).
	Factor float64

	// Max caps the computed delay. Zero means no cap.
	Max time.Duration

	// Jitter randomizes each delay by up to this fraction in either
	// direction (0.1 = +/-10%). Zero disables jitter.
	Jitter float64
}

// DefaultBackoff returns the default backoff policy:
// 500ms base, factor 2.0, 30s cap, 10% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   DefaultBackoffBase,
		Factor: DefaultBackoffFactor,
		Max:    DefaultBackoffMax,
		Jitter: DefaultBackoffJitter,
	}
}

// Delay returns the backoff delay before retry number attempt, counted
// from zero: Delay(0) precedes the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(base) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		// Uniform in [1-jitter, 1+jitter)
		delay *= 1 + b.Jitter*(2*rand.Float64()-1)
	}

	return time.Duration(delay)
}
