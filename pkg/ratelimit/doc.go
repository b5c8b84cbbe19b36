// Package ratelimit provides interchangeable rate limiting strategies for
// throttling outbound calls to generation providers.
//
// # Overview
//
// The ratelimit package implements four rate limiting strategies behind a
// single Limiter interface:
//
//   - Token Bucket: constant refill rate with bursts up to a capacity
//   - Fixed Window: counter over discrete, periodically-reset time slices
//   - Sliding Window: exact count over a continuously-moving trailing span
//   - Leaky Bucket: bounded queue drained at a strictly fixed rate (no burst)
//
// A limiter is selected once at construction time via the factory:
//
//	limiter, err := ratelimit.New(ratelimit.StrategyTokenBucket, ratelimit.Config{
//	    Rate:     10, // 10 units/sec
//	    Capacity: 10,
//	})
//	if limiter.Acquire(1) {
//	    // Request allowed
//	}
//
// # Blocking Acquisition
//
// Every strategy supports a timed blocking wait that truly suspends the
// calling goroutine (timer-based, never spin-polling) until capacity is
// available, the timeout elapses, or the context is canceled:
//
//	ok := limiter.Wait(ctx, 5, time.Second)
//
// Wait never consumes partial tokens on timeout. No FIFO ordering is
// guaranteed between competing waiters: a later caller requesting fewer
// tokens may be satisfied by a refill before an earlier caller requesting
// more. This is a documented non-guarantee, not a defect.
//
// # Registry
//
// The Registry holds one named limiter per external resource class
// (e.g., "chat-api-requests", "image-api-requests"):
//
//	reg := ratelimit.NewRegistry()
//	reg.Add("chat-api-requests", ratelimit.StrategyTokenBucket, cfg)
//	lim, err := reg.Get("chat-api-requests")
//
// Limiters are never reconfigured in place; replacement is Remove + Add.
// An optional Janitor can sweep limiters that have been idle beyond a TTL
// on a cron schedule.
//
// # Thread Safety
//
// All limiters and the Registry are thread-safe. Each limiter guards its
// counters with its own mutex, held only for the brief critical section
// that reads or mutates state, never across a blocking wait.
package ratelimit
