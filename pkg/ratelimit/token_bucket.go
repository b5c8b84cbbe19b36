package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The token bucket allows bursts up to the capacity while maintaining an
// average rate over time. Tokens accumulate at a constant refill rate and
// each acquisition consumes one or more tokens. This makes it appropriate
// for calls where short bursts are acceptable, such as image-generation
// requests.
//
// This implementation uses monotonic time to avoid clock skew issues and
// tracks tokens as float64 so fractional refill is never lost between
// closely spaced accesses.
//
// # Algorithm
//
//  1. On any access, refill = min(capacity, tokens + elapsed * rate)
//  2. Check if enough tokens are available for the request
//  3. If yes: consume tokens and allow
//  4. If no: reject (Acquire) or suspend until the deficit refills (Wait)
//
// # Thread Safety
//
// TokenBucket is thread-safe using sync.Mutex for all operations. The lock
// is never held across a blocking wait.
type TokenBucket struct {
	capacity   float64   // Maximum tokens in bucket
	tokens     float64   // Current available tokens
	rate       float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter.
//
// Parameters:
//   - capacity: Maximum number of tokens in the bucket (burst size)
//   - rate: Number of tokens added per second (average rate)
//
// Example:
//
//	// 10 requests/sec average, burst up to 10
//	bucket := NewTokenBucket(10, 10)
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity, // Start with full bucket
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Acquire attempts to consume n tokens without blocking.
// Returns true if the tokens were available and consumed.
func (tb *TokenBucket) Acquire(n int64) bool {
	if n <= 0 {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until n tokens are available and consumed, the timeout
// elapses, or ctx is canceled.
//
// The wait duration is computed from the current deficit and refill rate
// ((n - available) / rate) and the call fails immediately when that exceeds
// the remaining timeout. Partial tokens are never consumed on failure.
//
// Returns false immediately if n exceeds the bucket capacity: refill never
// grows the balance past capacity, so no amount of waiting satisfies it.
func (tb *TokenBucket) Wait(ctx context.Context, n int64, timeout time.Duration) bool {
	if n <= 0 {
		return true
	}

	return waitForTokens(ctx, timeout, func() (bool, time.Duration) {
		tb.mu.Lock()
		defer tb.mu.Unlock()

		tb.refillLocked()

		if float64(n) > tb.capacity {
			return false, -1
		}
		if tb.tokens >= float64(n) {
			tb.tokens -= float64(n)
			return true, 0
		}

		deficit := float64(n) - tb.tokens
		return false, time.Duration(deficit / tb.rate * float64(time.Second))
	})
}

// Available returns the number of tokens currently available.
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// Reset restores the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// Strategy returns StrategyTokenBucket.
func (tb *TokenBucket) Strategy() Strategy {
	return StrategyTokenBucket
}

// refillLocked adds tokens based on elapsed time since the last refill.
// Caller must hold lock.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
