package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CallFunc is the outbound call wrapped by a dispatch. The context carries
// the caller's cancellation and deadline; implementations should pass it
// through to the underlying transport.
type CallFunc func(ctx context.Context) (any, error)

// CallTask is one unit of dispatchable work.
type CallTask struct {
	// ID identifies the task in results. Assigned a random UUID when
	// empty.
	ID string

	// Call is the outbound call to execute.
	Call CallFunc

	// Limiters overrides the dispatcher's configured limiter names for
	// this task. The first name is the primary limiter; the rest are
	// secondary (e.g., a call-weight limiter). Empty means use the
	// dispatcher defaults.
	Limiters []string

	// Weight is the call's cost in limiter units. Values below 1 are
	// treated as 1.
	Weight int64

	// MaxRetries overrides the dispatcher's retry budget for this task
	// when non-nil.
	MaxRetries *int

	// Retryable overrides the dispatcher's failure classification for
	// this task when non-nil.
	Retryable func(error) bool
}

// normalized returns a copy of the task with defaults applied.
func (t CallTask) normalized() CallTask {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Weight < 1 {
		t.Weight = 1
	}
	return t
}

// DispatchResult is the outcome of one Dispatcher invocation.
type DispatchResult struct {
	// TaskID identifies the task this result belongs to.
	TaskID string

	// Success indicates the wrapped call completed without error.
	Success bool

	// Value is the call's return value (nil on failure).
	Value any

	// Err is the terminal failure (nil on success). Typed as
	// *ResourceExhaustedError, *RetryExhaustedError,
	// *DegradationExceededError, *PanicError, or the call's own error
	// for non-retryable failures.
	Err error

	// Retries is the number of retries consumed (0 for a first-attempt
	// outcome). Never exceeds the effective retry budget.
	Retries int

	// WaitTime is the total time spent waiting: limiter acquisition
	// plus backoff sleeps.
	WaitTime time.Duration

	// Degraded reports that a secondary limiter timed out and the call
	// proceeded with a reduced weight reservation.
	Degraded bool
}

// BatchResult is the outcome of a batch dispatch. It always covers every
// submitted task: success count plus failure count equals the total, and
// task identity is preserved regardless of completion order.
type BatchResult struct {
	// Results holds one result per task, in submission order.
	Results []DispatchResult

	// SuccessCount is the number of tasks that succeeded.
	SuccessCount int

	// FailureCount is the number of tasks that failed.
	FailureCount int
}

// Total returns the number of tasks covered by the batch.
func (b *BatchResult) Total() int {
	return len(b.Results)
}

// Result returns the result for the given task ID.
// When duplicate IDs were submitted, the first match wins.
func (b *BatchResult) Result(taskID string) (DispatchResult, bool) {
	for _, r := range b.Results {
		if r.TaskID == taskID {
			return r, true
		}
	}
	return DispatchResult{}, false
}
