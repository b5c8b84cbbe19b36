package history

import (
	"context"
	"fmt"
	"time"
)

// Record is one dispatch outcome.
type Record struct {
	// ID uniquely identifies the record.
	ID string

	// TaskID is the dispatched task's ID.
	TaskID string

	// Timestamp is when the dispatch completed.
	Timestamp time.Time

	// Limiters are the limiter names the dispatch acquired from.
	Limiters []string

	// Success indicates the dispatch succeeded.
	Success bool

	// Error is the terminal error text (empty on success).
	Error string

	// Retries is the number of retries consumed.
	Retries int

	// WaitTime is the total limiter and backoff waiting.
	WaitTime time.Duration

	// Degraded reports a reduced secondary reservation.
	Degraded bool
}

// Filter selects records for a query. Zero values match everything.
type Filter struct {
	// Since selects records at or after this time.
	Since time.Time

	// Until selects records before this time.
	Until time.Time

	// OnlyFailures selects only failed dispatches.
	OnlyFailures bool

	// Limit caps the number of returned records. Zero means no cap.
	Limit int
}

// matches reports whether the record passes the filter.
func (f Filter) matches(r *Record) bool {
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	if f.OnlyFailures && r.Success {
		return false
	}
	return true
}

// Backend persists dispatch outcome records.
type Backend interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]*Record, error)

	// Prune deletes records older than the given time and returns the
	// number deleted.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}

// StorageError wraps a backend failure with the backend name and the
// operation that failed.
type StorageError struct {
	// Backend is the backend name ("memory", "sqlite").
	Backend string

	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("history backend %q %s failed: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}
