package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is the batch concurrency budget when none is
// configured.
const DefaultMaxConcurrent = 8

// ErrNoDispatcher is returned when a batch dispatcher was constructed
// without a dispatcher to delegate to.
var ErrNoDispatcher = errors.New("batch dispatcher has no dispatcher")

// BatchDispatcher fans out independent call tasks under a bounded
// concurrency budget.
//
// Each task runs as its own goroutine that first acquires a slot from a
// counting semaphore sized maxConcurrent, then delegates to the Dispatcher,
// then releases the slot regardless of outcome. Failures in one task never
// abort sibling tasks.
type BatchDispatcher struct {
	dispatcher    *Dispatcher
	maxConcurrent int64
	logger        *slog.Logger
}

// NewBatchDispatcher creates a batch dispatcher delegating to d.
// maxConcurrent values below 1 get DefaultMaxConcurrent.
func NewBatchDispatcher(d *Dispatcher, maxConcurrent int) *BatchDispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &BatchDispatcher{
		dispatcher:    d,
		maxConcurrent: int64(maxConcurrent),
		logger:        slog.Default().With("component", "dispatch.batch"),
	}
}

// DispatchBatch dispatches every task and collects their outcomes.
//
// The returned BatchResult always covers every submitted task, in
// submission order, regardless of completion order. Individual task
// failures (including panics inside a task's call) are captured into that
// task's result and never surface as a batch error.
//
// Cancellation of ctx stops launching new tasks; tasks already in flight
// finish or time out individually and are not forcibly killed. Tokens
// consumed by a task before cancellation are not refunded. When
// cancellation occurred, the complete BatchResult is returned together
// with a batch-level error wrapping ctx.Err().
func (b *BatchDispatcher) DispatchBatch(ctx context.Context, tasks []CallTask) (*BatchResult, error) {
	if b.dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	sem := semaphore.NewWeighted(b.maxConcurrent)
	results := make([]DispatchResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		// Normalize up front so even unlaunched tasks keep identity
		task = task.normalized()

		// Acquiring a slot blocks while the budget is saturated and
		// fails once ctx is canceled, which stops further launches.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = DispatchResult{
				TaskID: task.ID,
				Err:    fmt.Errorf("task not launched: %w", err),
			}
			continue
		}

		wg.Add(1)
		go func(i int, task CallTask) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("task call panicked",
						"task_id", task.ID,
						"panic", r,
					)
					results[i] = DispatchResult{
						TaskID: task.ID,
						Err:    &PanicError{TaskID: task.ID, Value: r},
					}
				}
			}()

			results[i] = b.dispatcher.Dispatch(ctx, task)
		}(i, task)
	}

	wg.Wait()

	batch := &BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			batch.SuccessCount++
		} else {
			batch.FailureCount++
		}
	}

	b.logger.Info("batch complete",
		"total", batch.Total(),
		"succeeded", batch.SuccessCount,
		"failed", batch.FailureCount,
	)

	if err := ctx.Err(); err != nil {
		return batch, fmt.Errorf("batch canceled: %w", err)
	}
	return batch, nil
}
