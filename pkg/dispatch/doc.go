// Package dispatch wraps outbound calls to generation providers with rate
// limiter acquisition, retry with exponential backoff, and bounded
// concurrent fan-out.
//
// # Overview
//
// The Dispatcher wraps a single outbound call: it acquires tokens from one
// or more named limiters, executes the call, classifies failures, and
// retries retryable ones up to a bound. The BatchDispatcher fans out a
// list of independent call tasks under a concurrency budget, delegating
// each task to the Dispatcher and isolating per-task failures.
//
//	d := dispatch.NewDispatcher(registry, dispatch.Options{
//	    Limiters:   []string{"chat-api-requests", "chat-api-tokens"},
//	    MaxRetries: 3,
//	    Retryable:  func(err error) bool { return errors.Is(err, errProviderBusy) },
//	})
//	result := d.Dispatch(ctx, dispatch.CallTask{Call: call, Weight: 120})
//
// # Call Lifecycle
//
// Each dispatch moves through the states
//
//	Pending -> AcquiringTokens -> InFlight ->
//	    {Succeeded | RetryScheduled -> AcquiringTokens | FailedTerminal}
//
// Token acquisition timeouts are resource-exhaustion failures and are
// never retried: the caller already waited its allotted time. Call
// failures are retried only when the caller-supplied predicate marks them
// retryable, with exponential backoff between attempts, re-acquiring
// limiter tokens on every attempt.
//
// # Secondary Limiter Degradation
//
// When a secondary limiter (e.g., a call-weight limiter) cannot be
// satisfied within the acquire timeout but the primary succeeded, the
// dispatcher proceeds with whatever reduced reservation is immediately
// available rather than blocking indefinitely. This is a deliberate
// trade-off to avoid starving the caller; it is surfaced on the result
// (Degraded), counted in metrics, and bounded: after too many consecutive
// degraded dispatches the next secondary timeout fails hard instead.
//
// # Error Isolation
//
// A batch never fails because individual tasks failed. Every submitted
// task gets a result in the BatchResult, keyed by task ID regardless of
// completion order, and panics inside a task's call are captured into that
// task's result. Only caller cancellation or a systemic failure surfaces
// as a batch-level error.
package dispatch
