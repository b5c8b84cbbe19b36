package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow implements fixed window rate limiting.
//
// The fixed window counts accepted units within discrete time slices. When
// a slice expires, the counter resets to zero and a fresh slice begins at
// the time of the next access.
//
// # Boundary Burst
//
// Up to 2x the per-window limit can be accepted in a short span straddling
// a window boundary: a full limit just before the window rolls over, and a
// full limit again just after. This acceptance behavior is intentional and
// kept stable because callers depend on it; it is asserted by tests, not
// treated as a defect. Use SlidingWindow where exact trailing-span control
// is required.
//
// # Thread Safety
//
// FixedWindow is thread-safe using sync.Mutex for all operations.
type FixedWindow struct {
	limit       int64         // Maximum units per window
	window      time.Duration // Window size
	counter     int64         // Units accepted in the current window
	windowStart time.Time     // When the current window began
	mu          sync.Mutex
}

// NewFixedWindow creates a new fixed window rate limiter.
//
// Parameters:
//   - limit: Maximum number of units accepted per window
//   - window: Window duration
func NewFixedWindow(limit int64, window time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
	}
}

// Acquire attempts to consume n units without blocking.
// Returns true if the current window had room for all n units.
func (fw *FixedWindow) Acquire(n int64) bool {
	if n <= 0 {
		return true
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.rollLocked(time.Now())

	if fw.counter+n <= fw.limit {
		fw.counter += n
		return true
	}
	return false
}

// Wait blocks until the current or a subsequent window has room for n
// units, the timeout elapses, or ctx is canceled.
//
// Returns false immediately if n exceeds the per-window limit, since no
// window could ever admit the request.
func (fw *FixedWindow) Wait(ctx context.Context, n int64, timeout time.Duration) bool {
	if n <= 0 {
		return true
	}

	return waitForTokens(ctx, timeout, func() (bool, time.Duration) {
		fw.mu.Lock()
		defer fw.mu.Unlock()

		now := time.Now()
		fw.rollLocked(now)

		if n > fw.limit {
			return false, -1
		}
		if fw.counter+n <= fw.limit {
			fw.counter += n
			return true, 0
		}

		// Room frees when the current window expires
		return false, fw.windowStart.Add(fw.window).Sub(now)
	})
}

// Available returns the number of units remaining in the current window.
func (fw *FixedWindow) Available() float64 {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.rollLocked(time.Now())
	return float64(fw.limit - fw.counter)
}

// Reset clears the counter and starts a fresh window.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.counter = 0
	fw.windowStart = time.Now()
}

// Strategy returns StrategyFixedWindow.
func (fw *FixedWindow) Strategy() Strategy {
	return StrategyFixedWindow
}

// rollLocked resets the counter if the current window has expired.
// Caller must hold lock.
func (fw *FixedWindow) rollLocked(now time.Time) {
	if now.Sub(fw.windowStart) >= fw.window {
		fw.counter = 0
		fw.windowStart = now
	}
}
