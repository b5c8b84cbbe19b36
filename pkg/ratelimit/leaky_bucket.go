package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LeakyBucket implements leaky bucket rate limiting.
//
// The leaky bucket admits units into a bounded queue that drains at a
// strictly fixed rate. Admission succeeds only while the queue has room,
// so accepted work is smoothed to the drain rate with no bursts permitted.
// This suits calls to a downstream system with a hard fixed-rate ceiling.
//
// The queue level is tracked as float64 and drained lazily on every
// access, mirroring token bucket refill arithmetic inverted: the level
// empties over time rather than refilling.
//
// # Thread Safety
//
// LeakyBucket is thread-safe using sync.Mutex for all operations.
type LeakyBucket struct {
	capacity  float64   // Maximum queued units
	level     float64   // Current queued units
	rate      float64   // Units drained per second
	lastDrain time.Time // Last time the level was drained
	mu        sync.Mutex
}

// NewLeakyBucket creates a new leaky bucket rate limiter.
//
// Parameters:
//   - capacity: Maximum number of units the queue holds
//   - rate: Number of units drained per second
//
// Example:
//
//	// Hard 1/sec ceiling, up to 5 queued
//	bucket := NewLeakyBucket(5, 1)
func NewLeakyBucket(capacity, rate float64) *LeakyBucket {
	return &LeakyBucket{
		capacity:  capacity,
		rate:      rate,
		lastDrain: time.Now(),
	}
}

// Acquire attempts to enqueue n units without blocking.
// Returns true if the queue had room for all n units.
func (lb *LeakyBucket) Acquire(n int64) bool {
	if n <= 0 {
		return true
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.drainLocked()

	if lb.level+float64(n) <= lb.capacity {
		lb.level += float64(n)
		return true
	}
	return false
}

// Wait blocks until the queue has room for n units, the timeout elapses,
// or ctx is canceled.
//
// Returns false immediately if n exceeds the queue capacity.
func (lb *LeakyBucket) Wait(ctx context.Context, n int64, timeout time.Duration) bool {
	if n <= 0 {
		return true
	}

	return waitForTokens(ctx, timeout, func() (bool, time.Duration) {
		lb.mu.Lock()
		defer lb.mu.Unlock()

		lb.drainLocked()

		if float64(n) > lb.capacity {
			return false, -1
		}
		if lb.level+float64(n) <= lb.capacity {
			lb.level += float64(n)
			return true, 0
		}

		// Room frees once the overflow drains away
		overflow := lb.level + float64(n) - lb.capacity
		return false, time.Duration(overflow / lb.rate * float64(time.Second))
	})
}

// Available returns the queue room currently available.
func (lb *LeakyBucket) Available() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.drainLocked()
	return lb.capacity - lb.level
}

// Reset empties the queue.
func (lb *LeakyBucket) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.level = 0
	lb.lastDrain = time.Now()
}

// Strategy returns StrategyLeakyBucket.
func (lb *LeakyBucket) Strategy() Strategy {
	return StrategyLeakyBucket
}

// drainLocked lowers the level based on elapsed time since the last drain.
// Caller must hold lock.
func (lb *LeakyBucket) drainLocked() {
	now := time.Now()
	elapsed := now.Sub(lb.lastDrain)
	if elapsed <= 0 {
		return
	}

	lb.level -= elapsed.Seconds() * lb.rate
	if lb.level < 0 {
		lb.level = 0
	}
	lb.lastDrain = now
}
