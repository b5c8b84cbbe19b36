package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/ratelimit"
)

// errTransient marks failures the test dispatchers treat as retryable.
var errTransient = errors.New("transient call failure")

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

// newTestRegistry returns a registry with a generous request limiter.
func newTestRegistry(t *testing.T) *ratelimit.Registry {
	t.Helper()
	reg := ratelimit.NewRegistry()
	if err := reg.Add("requests", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 1000}); err != nil {
		t.Fatalf("Failed to add limiter: %v", err)
	}
	return reg
}

// fastBackoff keeps retry delays negligible in tests.
func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Factor: 1.0}
}

// ============================================================================
// Success and Classification Tests
// ============================================================================

func TestDispatcher_Success(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		Limiters: []string{"requests"},
	})

	result := d.Dispatch(context.Background(), CallTask{
		ID: "task-1",
		Call: func(ctx context.Context) (any, error) {
			return "response", nil
		},
	})

	if !result.Success {
		t.Fatalf("Expected success, got error: %v", result.Err)
	}
	if result.TaskID != "task-1" {
		t.Errorf("Expected task-1, got %q", result.TaskID)
	}
	if result.Value != "response" {
		t.Errorf("Expected response value, got %v", result.Value)
	}
	if result.Retries != 0 {
		t.Errorf("Expected 0 retries, got %d", result.Retries)
	}
}

func TestDispatcher_AssignsTaskID(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{})

	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) { return nil, nil },
	})

	if result.TaskID == "" {
		t.Error("Expected a generated task ID")
	}
}

func TestDispatcher_TransientFailureRetries(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		Limiters:  []string{"requests"},
		Backoff:   fastBackoff(),
		Retryable: isTransient,
	})

	// Fails twice, then succeeds
	calls := 0
	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) {
			calls++
			if calls <= 2 {
				return nil, errTransient
			}
			return "ok", nil
		},
	})

	if !result.Success {
		t.Fatalf("Expected eventual success, got: %v", result.Err)
	}
	if result.Retries != 2 {
		t.Errorf("Expected exactly 2 retries, got %d", result.Retries)
	}
	if calls != 3 {
		t.Errorf("Expected 3 call attempts, got %d", calls)
	}
}

func TestDispatcher_FatalFailureNoRetry(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		Backoff:   fastBackoff(),
		Retryable: isTransient,
	})

	fatal := errors.New("invalid request")
	calls := 0
	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, fatal
		},
	})

	if result.Success {
		t.Fatal("Expected failure")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 attempt for a fatal error, got %d", calls)
	}
	if !errors.Is(result.Err, fatal) {
		t.Errorf("Expected the original error, got %v", result.Err)
	}
}

func TestDispatcher_NilRetryableTreatsAllFatal(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{Backoff: fastBackoff()})

	calls := 0
	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, errTransient
		},
	})

	if result.Success || calls != 1 {
		t.Errorf("Expected single fatal attempt without a classifier, got %d calls", calls)
	}
}

func TestDispatcher_RetryBudgetExhausted(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		MaxRetries: 2,
		Backoff:    fastBackoff(),
		Retryable:  isTransient,
	})

	calls := 0
	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, errTransient
		},
	})

	if result.Success {
		t.Fatal("Expected failure")
	}
	if calls != 3 { // Initial attempt + 2 retries
		t.Errorf("Expected 3 attempts, got %d", calls)
	}

	var exhausted *RetryExhaustedError
	if !errors.As(result.Err, &exhausted) {
		t.Fatalf("Expected *RetryExhaustedError, got %T: %v", result.Err, result.Err)
	}
	if exhausted.Retries != 2 {
		t.Errorf("Expected 2 retries reported, got %d", exhausted.Retries)
	}
	if !errors.Is(result.Err, errTransient) {
		t.Error("Expected the cause to remain reachable via errors.Is")
	}
}

func TestDispatcher_PerTaskOverrides(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		MaxRetries: 5,
		Backoff:    fastBackoff(),
		Retryable:  isTransient,
	})

	noRetries := 0
	calls := 0
	result := d.Dispatch(context.Background(), CallTask{
		MaxRetries: &noRetries,
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, errTransient
		},
	})

	if result.Success || calls != 1 {
		t.Errorf("Expected single attempt with per-task zero budget, got %d calls", calls)
	}

	// Per-task classifier overrides the dispatcher's
	calls = 0
	result = d.Dispatch(context.Background(), CallTask{
		Retryable: func(error) bool { return false },
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, errTransient
		},
	})
	if calls != 1 {
		t.Errorf("Expected per-task classifier to suppress retries, got %d calls", calls)
	}
}

// ============================================================================
// Limiter Acquisition Tests
// ============================================================================

func TestDispatcher_ResourceExhaustedNotRetried(t *testing.T) {
	reg := ratelimit.NewRegistry()
	reg.Add("tiny", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 0.1, Capacity: 1})

	d := NewDispatcher(reg, Options{
		Limiters:       []string{"tiny"},
		AcquireTimeout: 50 * time.Millisecond,
		Backoff:        fastBackoff(),
		Retryable:      func(error) bool { return true },
	})

	// Drain the limiter
	lim, _ := reg.Get("tiny")
	lim.Acquire(1)

	calls := 0
	start := time.Now()
	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) {
			calls++
			return nil, nil
		},
	})
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("Expected resource exhaustion")
	}
	if calls != 0 {
		t.Errorf("Expected the call to never run, ran %d times", calls)
	}

	var exhausted *ResourceExhaustedError
	if !errors.As(result.Err, &exhausted) {
		t.Fatalf("Expected *ResourceExhaustedError, got %T: %v", result.Err, result.Err)
	}
	if exhausted.Limiter != "tiny" {
		t.Errorf("Expected limiter tiny, got %q", exhausted.Limiter)
	}

	// Not retried: single acquisition failure, no backoff cycles
	if elapsed > 300*time.Millisecond {
		t.Errorf("Expected a single timeout without retries, took %v", elapsed)
	}
	if result.Retries != 0 {
		t.Errorf("Expected 0 retries for resource exhaustion, got %d", result.Retries)
	}
}

func TestDispatcher_UnknownLimiter(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		Limiters: []string{"missing"},
	})

	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) { return nil, nil },
	})

	if result.Success {
		t.Fatal("Expected failure for unknown limiter")
	}
	if !errors.Is(result.Err, ratelimit.ErrLimiterNotFound) {
		t.Errorf("Expected ErrLimiterNotFound, got %v", result.Err)
	}
}

func TestDispatcher_WeightedAcquisition(t *testing.T) {
	reg := ratelimit.NewRegistry()
	reg.Add("tokens", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 0.001, Capacity: 10})

	d := NewDispatcher(reg, Options{
		Limiters:       []string{"tokens"},
		AcquireTimeout: 50 * time.Millisecond,
	})

	// Weight 8 fits once into capacity 10, not twice
	task := CallTask{
		Weight: 8,
		Call:   func(ctx context.Context) (any, error) { return nil, nil },
	}

	if result := d.Dispatch(context.Background(), task); !result.Success {
		t.Fatalf("First weighted dispatch failed: %v", result.Err)
	}
	if result := d.Dispatch(context.Background(), task); result.Success {
		t.Fatal("Second weighted dispatch should have exhausted the limiter")
	}
}

// ============================================================================
// Degradation Tests
// ============================================================================

func TestDispatcher_SecondaryDegradation(t *testing.T) {
	reg := newTestRegistry(t)
	// Secondary with nothing available and a negligible refill
	reg.Add("secondary", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 0.001, Capacity: 5})
	lim, _ := reg.Get("secondary")
	lim.Acquire(5)

	d := NewDispatcher(reg, Options{
		Limiters:       []string{"requests", "secondary"},
		AcquireTimeout: 30 * time.Millisecond,
	})

	result := d.Dispatch(context.Background(), CallTask{
		Call: func(ctx context.Context) (any, error) { return "ok", nil },
	})

	if !result.Success {
		t.Fatalf("Expected degraded success, got: %v", result.Err)
	}
	if !result.Degraded {
		t.Error("Expected result to be marked degraded")
	}
}

func TestDispatcher_DegradationStreakBound(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add("secondary", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 0.001, Capacity: 5})
	lim, _ := reg.Get("secondary")
	lim.Acquire(5)

	d := NewDispatcher(reg, Options{
		Limiters:                   []string{"requests", "secondary"},
		AcquireTimeout:             20 * time.Millisecond,
		MaxConsecutiveDegradations: 3,
	})

	task := CallTask{
		Call: func(ctx context.Context) (any, error) { return nil, nil },
	}

	// The first three dispatches degrade; the fourth fails hard
	for i := 0; i < 3; i++ {
		result := d.Dispatch(context.Background(), task)
		if !result.Success || !result.Degraded {
			t.Fatalf("Dispatch %d: expected degraded success, got success=%v err=%v",
				i+1, result.Success, result.Err)
		}
	}

	result := d.Dispatch(context.Background(), task)
	if result.Success {
		t.Fatal("Expected hard failure once the degradation bound was reached")
	}
	var exceeded *DegradationExceededError
	if !errors.As(result.Err, &exceeded) {
		t.Fatalf("Expected *DegradationExceededError, got %T: %v", result.Err, result.Err)
	}
	if exceeded.Streak != 3 {
		t.Errorf("Expected streak 3, got %d", exceeded.Streak)
	}
}

func TestDispatcher_FullAcquisitionResetsStreak(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Add("secondary", ratelimit.StrategyTokenBucket, ratelimit.Config{Rate: 0.001, Capacity: 100})
	lim, _ := reg.Get("secondary")

	d := NewDispatcher(reg, Options{
		Limiters:                   []string{"requests", "secondary"},
		AcquireTimeout:             20 * time.Millisecond,
		MaxConsecutiveDegradations: 2,
	})

	task := CallTask{
		Call: func(ctx context.Context) (any, error) { return nil, nil },
	}

	// Degrade twice against a drained secondary
	lim.Acquire(100)
	for i := 0; i < 2; i++ {
		if result := d.Dispatch(context.Background(), task); !result.Degraded {
			t.Fatalf("Dispatch %d: expected degradation", i+1)
		}
	}

	// A full acquisition resets the streak
	lim.Reset()
	if result := d.Dispatch(context.Background(), task); result.Degraded {
		t.Fatal("Expected full acquisition after reset")
	}

	// Streak starts over: the next drained dispatch degrades instead of
	// failing hard
	lim.Acquire(100)
	result := d.Dispatch(context.Background(), task)
	if !result.Success || !result.Degraded {
		t.Errorf("Expected degraded success after streak reset, got success=%v err=%v",
			result.Success, result.Err)
	}
}

// ============================================================================
// Cancellation Tests
// ============================================================================

func TestDispatcher_CancelDuringBackoff(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t), Options{
		Backoff:   Backoff{Base: 5 * time.Second, Factor: 1.0},
		Retryable: func(error) bool { return true },
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := d.Dispatch(ctx, CallTask{
		Call: func(ctx context.Context) (any, error) {
			return nil, fmt.Errorf("try again")
		},
	})

	if result.Success {
		t.Fatal("Expected failure on cancellation")
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", result.Err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected prompt return on cancel, took %v", elapsed)
	}
}

// ============================================================================
// Result Callback Tests
// ============================================================================

func TestDispatcher_OnResultPerCompletedTask(t *testing.T) {
	var (
		mu       sync.Mutex
		observed []DispatchResult
	)
	d := NewDispatcher(newTestRegistry(t), Options{
		Backoff:   fastBackoff(),
		Retryable: isTransient,
		OnResult: func(r DispatchResult) {
			mu.Lock()
			observed = append(observed, r)
			mu.Unlock()
		},
	})

	// A retried task must surface exactly one terminal result, not one
	// per attempt.
	var calls int
	result := d.Dispatch(context.Background(), CallTask{
		ID: "flaky",
		Call: func(ctx context.Context) (any, error) {
			calls++
			if calls < 2 {
				return nil, errTransient
			}
			return "ok", nil
		},
	})
	if !result.Success {
		t.Fatalf("Expected success, got: %v", result.Err)
	}

	batch := NewBatchDispatcher(d, 2)
	tasks := []CallTask{
		{ID: "b-1", Call: func(ctx context.Context) (any, error) { return "ok", nil }},
		{ID: "b-2", Call: func(ctx context.Context) (any, error) { return nil, errors.New("fatal") }},
	}
	if _, err := batch.DispatchBatch(context.Background(), tasks); err != nil {
		t.Fatalf("DispatchBatch failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 3 {
		t.Fatalf("Expected 3 terminal results, got %d", len(observed))
	}
	if observed[0].TaskID != "flaky" || observed[0].Retries != 1 {
		t.Errorf("Expected flaky result with 1 retry first, got %+v", observed[0])
	}
}
