package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow implements sliding window rate limiting.
//
// The sliding window keeps an ordered log of acceptance timestamps, one
// entry per unit consumed. Entries older than the trailing window are
// pruned on every access. This gives exact rate control with no boundary
// burst, at the cost of memory proportional to recent acceptance volume.
//
// # Algorithm
//
//  1. Prune log entries older than now - window
//  2. Admit iff len(log) + n <= limit
//  3. On admission, append n timestamp entries
//
// # Thread Safety
//
// SlidingWindow is thread-safe using sync.Mutex for all operations.
type SlidingWindow struct {
	limit  int64         // Maximum units within the trailing window
	window time.Duration // Trailing window duration
	log    []time.Time   // Acceptance timestamps, oldest first
	mu     sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter.
//
// Parameters:
//   - limit: Maximum number of units accepted within any trailing window
//   - window: Trailing window duration
func NewSlidingWindow(limit int64, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
	}
}

// Acquire attempts to consume n units without blocking.
// Returns true if the trailing window had room for all n units.
func (sw *SlidingWindow) Acquire(n int64) bool {
	if n <= 0 {
		return true
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.pruneLocked(now)

	if int64(len(sw.log))+n <= sw.limit {
		sw.appendLocked(now, n)
		return true
	}
	return false
}

// Wait blocks until the trailing window has room for n units, the timeout
// elapses, or ctx is canceled.
//
// Returns false immediately if n exceeds the window limit.
func (sw *SlidingWindow) Wait(ctx context.Context, n int64, timeout time.Duration) bool {
	if n <= 0 {
		return true
	}

	return waitForTokens(ctx, timeout, func() (bool, time.Duration) {
		sw.mu.Lock()
		defer sw.mu.Unlock()

		now := time.Now()
		sw.pruneLocked(now)

		if n > sw.limit {
			return false, -1
		}
		if int64(len(sw.log))+n <= sw.limit {
			sw.appendLocked(now, n)
			return true, 0
		}

		// Room frees when enough of the oldest entries age out. The log
		// is ordered, so the k-th oldest entry expiring is the earliest
		// instant the request could fit.
		k := int64(len(sw.log)) + n - sw.limit
		return false, sw.log[k-1].Add(sw.window).Sub(now)
	})
}

// Available returns the number of units remaining in the trailing window.
func (sw *SlidingWindow) Available() float64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(time.Now())
	return float64(sw.limit - int64(len(sw.log)))
}

// Reset clears the acceptance log.
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.log = nil
}

// Strategy returns StrategySlidingWindow.
func (sw *SlidingWindow) Strategy() Strategy {
	return StrategySlidingWindow
}

// pruneLocked drops entries older than the trailing window.
// Caller must hold lock.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)

	i := 0
	for i < len(sw.log) && !sw.log[i].After(cutoff) {
		i++
	}
	if i > 0 {
		// Copy down rather than re-slice so pruned entries do not pin
		// the backing array forever
		sw.log = append(sw.log[:0], sw.log[i:]...)
	}
}

// appendLocked records n acceptances at the given instant.
// Caller must hold lock.
func (sw *SlidingWindow) appendLocked(now time.Time, n int64) {
	for i := int64(0); i < n; i++ {
		sw.log = append(sw.log, now)
	}
}
