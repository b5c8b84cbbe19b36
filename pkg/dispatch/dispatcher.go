package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/callisto/pkg/ratelimit"
)

// Default dispatcher parameters.
const (
	DefaultMaxRetries     = 3
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultMaxConsecutiveDegradations bounds how many dispatches in a
	// row may proceed with a reduced secondary reservation before a
	// secondary timeout fails hard.
	DefaultMaxConsecutiveDegradations = 5
)

// Options configures a Dispatcher. Zero values get sane defaults so an
// unconfigured dispatcher works.
type Options struct {
	// Limiters are the default limiter names acquired per dispatch.
	// The first name is the primary limiter; any further names are
	// secondary and subject to degradation on timeout. Empty means no
	// throttling.
	Limiters []string

	// MaxRetries is the default retry budget per dispatch.
	// Negative disables retries; zero means DefaultMaxRetries.
	MaxRetries int

	// Backoff is the retry backoff policy. The zero value gets
	// DefaultBackoff parameters field by field.
	Backoff Backoff

	// AcquireTimeout bounds each limiter token wait.
	// Zero means DefaultAcquireTimeout.
	AcquireTimeout time.Duration

	// Retryable classifies call failures. Only errors it returns true
	// for are retried. Nil retries nothing: every call failure is
	// terminal on first occurrence.
	Retryable func(error) bool

	// MaxConsecutiveDegradations bounds the degradation streak.
	// Zero means DefaultMaxConsecutiveDegradations; negative means
	// unbounded.
	MaxConsecutiveDegradations int

	// OnResult, when set, receives every terminal dispatch result as it
	// completes. Used for live progress reporting; it runs on the
	// dispatching goroutine and must not block.
	OnResult func(DispatchResult)

	// Logger receives dispatch lifecycle logs. Nil uses slog.Default.
	Logger *slog.Logger

	// Metrics receives dispatch metrics. Nil disables metrics.
	Metrics *Metrics
}

// withDefaults returns the options with zero values resolved.
func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.Backoff == (Backoff{}) {
		o.Backoff = DefaultBackoff()
	}
	if o.MaxConsecutiveDegradations == 0 {
		o.MaxConsecutiveDegradations = DefaultMaxConsecutiveDegradations
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "dispatch")
	}
	return o
}

// Dispatcher wraps single outbound calls with limiter acquisition, failure
// classification, and bounded retry with exponential backoff.
//
// The registry and all options are explicit; there is no ambient or global
// limiter lookup, so lifecycle and testing stay deterministic.
type Dispatcher struct {
	registry *ratelimit.Registry
	opts     Options

	// degradeStreak counts consecutive dispatches that proceeded with a
	// reduced secondary reservation. Any fully-acquired dispatch resets
	// it.
	degradeStreak atomic.Int64
}

// NewDispatcher creates a dispatcher acquiring from the given registry.
func NewDispatcher(registry *ratelimit.Registry, opts Options) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

// Dispatch executes one task: acquire tokens, run the call, classify the
// outcome, retry retryable failures within the budget.
//
// The returned result is always complete: Retries records the retries
// consumed and WaitTime the total limiter and backoff waiting, on failure
// as well as success. Limiter wait timeouts are not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, task CallTask) DispatchResult {
	result := d.run(ctx, task)
	if d.opts.OnResult != nil {
		d.opts.OnResult(result)
	}
	return result
}

// run executes the dispatch state machine for one task.
func (d *Dispatcher) run(ctx context.Context, task CallTask) DispatchResult {
	task = task.normalized()

	limiters := task.Limiters
	if len(limiters) == 0 {
		limiters = d.opts.Limiters
	}
	maxRetries := d.opts.MaxRetries
	if task.MaxRetries != nil {
		maxRetries = *task.MaxRetries
		if maxRetries < 0 {
			maxRetries = 0
		}
	}
	retryable := d.opts.Retryable
	if task.Retryable != nil {
		retryable = task.Retryable
	}

	result := DispatchResult{TaskID: task.ID}

	for attempt := 0; ; attempt++ {
		result.Retries = attempt

		// AcquiringTokens
		degraded, err := d.acquireTokens(ctx, limiters, task.Weight, &result.WaitTime)
		if err != nil {
			// Resource exhaustion is terminal: the caller already
			// waited its allotted acquisition time.
			result.Err = err
			d.opts.Metrics.recordResult(result)
			d.opts.Logger.Warn("dispatch failed acquiring tokens",
				"task_id", task.ID,
				"error", err,
			)
			return result
		}
		if degraded {
			result.Degraded = true
		}

		// InFlight
		value, callErr := d.invoke(ctx, task.Call)

		if callErr == nil {
			// Succeeded
			result.Success = true
			result.Value = value
			result.Err = nil
			d.opts.Metrics.recordResult(result)
			return result
		}

		if retryable == nil || !retryable(callErr) {
			// FailedTerminal: fatal call error, surfaced immediately
			result.Err = callErr
			d.opts.Metrics.recordResult(result)
			return result
		}
		if attempt >= maxRetries {
			// FailedTerminal: retry budget exhausted
			result.Err = &RetryExhaustedError{Retries: attempt, Cause: callErr}
			d.opts.Metrics.recordResult(result)
			d.opts.Logger.Warn("dispatch exhausted retries",
				"task_id", task.ID,
				"retries", attempt,
				"error", callErr,
			)
			return result
		}

		// RetryScheduled
		delay := d.opts.Backoff.Delay(attempt)
		d.opts.Logger.Debug("retrying dispatch",
			"task_id", task.ID,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"backoff", delay,
			"error", callErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = ctx.Err()
			d.opts.Metrics.recordResult(result)
			return result
		case <-timer.C:
			result.WaitTime += delay
		}
	}
}

// invoke runs the call with the in-flight gauge held for exactly the
// call's duration. The gauge is released in a defer so a panicking call
// does not leave it incremented while the panic unwinds to the batch
// dispatcher's recovery.
func (d *Dispatcher) invoke(ctx context.Context, call CallFunc) (any, error) {
	done := d.opts.Metrics.callStarted()
	defer done()
	return call(ctx)
}

// acquireTokens waits on every configured limiter for the call weight.
//
// The primary limiter (first name) is strict: a wait timeout is a
// ResourceExhaustedError. Secondary limiters degrade on timeout: the
// dispatch proceeds with whatever reduced reservation is immediately
// available, unless the consecutive-degradation bound has been reached,
// in which case the timeout fails hard with DegradationExceededError.
//
// waited accumulates the time actually spent waiting.
func (d *Dispatcher) acquireTokens(ctx context.Context, limiters []string, weight int64, waited *time.Duration) (degraded bool, err error) {
	for i, name := range limiters {
		limiter, lookupErr := d.registry.Get(name)
		if lookupErr != nil {
			return false, lookupErr
		}

		start := time.Now()
		ok := limiter.Wait(ctx, weight, d.opts.AcquireTimeout)
		*waited += time.Since(start)

		if ok {
			continue
		}

		d.opts.Metrics.recordAcquireTimeout(name)

		if i == 0 {
			// Primary exhaustion is never degraded around
			return false, &ResourceExhaustedError{
				Limiter: name,
				Weight:  weight,
				Timeout: d.opts.AcquireTimeout,
			}
		}

		if d.opts.MaxConsecutiveDegradations > 0 {
			if streak := d.degradeStreak.Load(); streak >= int64(d.opts.MaxConsecutiveDegradations) {
				return false, &DegradationExceededError{
					Limiter: name,
					Streak:  int(streak),
				}
			}
		}

		// Degrade: reserve whatever is immediately available instead
		// of blocking the caller indefinitely. Under sustained
		// overload this lets the secondary resource run ahead of its
		// limit, which is why the streak above bounds it.
		if avail := int64(limiter.Available()); avail > 0 {
			if avail > weight {
				avail = weight
			}
			limiter.Acquire(avail)
		}
		degraded = true

		d.opts.Metrics.recordDegradation()
		d.opts.Logger.Warn("secondary limiter timed out, proceeding degraded",
			"limiter", name,
			"weight", weight,
			"streak", d.degradeStreak.Load()+1,
		)
	}

	if degraded {
		d.degradeStreak.Add(1)
	} else {
		d.degradeStreak.Store(0)
	}
	return degraded, nil
}
