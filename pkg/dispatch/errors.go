package dispatch

import (
	"fmt"
	"time"
)

// ResourceExhaustedError indicates a limiter token wait timed out.
// The dispatcher never retries this failure: the caller already waited its
// allotted acquisition time.
type ResourceExhaustedError struct {
	// Limiter is the name of the limiter that could not be satisfied.
	Limiter string

	// Weight is the number of units that were requested.
	Weight int64

	// Timeout is the acquisition timeout that elapsed.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("limiter %q could not supply %d units within %s",
		e.Limiter, e.Weight, e.Timeout)
}

// RetryExhaustedError indicates a retryable call failure outlived the
// retry budget. It carries the exhausted retry count and the last error.
type RetryExhaustedError struct {
	// Retries is the number of retries consumed.
	Retries int

	// Cause is the final call error.
	Cause error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("call failed after %d retries: %v", e.Retries, e.Cause)
}

// Unwrap returns the final call error for error chain support.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Cause
}

// DegradationExceededError indicates a secondary limiter timed out after
// the consecutive-degradation bound was already reached, so the dispatch
// failed hard instead of degrading again.
type DegradationExceededError struct {
	// Limiter is the secondary limiter that timed out.
	Limiter string

	// Streak is the consecutive degraded dispatches observed before
	// this failure.
	Streak int
}

// Error implements the error interface.
func (e *DegradationExceededError) Error() string {
	return fmt.Sprintf("limiter %q timed out after %d consecutive degraded dispatches",
		e.Limiter, e.Streak)
}

// PanicError captures a panic raised inside a task's call so it surfaces
// as that task's failure instead of tearing down sibling tasks.
type PanicError struct {
	// TaskID identifies the task whose call panicked.
	TaskID string

	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.TaskID, e.Value)
}
