package history

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the recorder.
type RecorderConfig struct {
	// BufferSize is the async write channel buffer size.
	// Default: 1000
	BufferSize int

	// WriteTimeout bounds each backend write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes dispatch outcome records to a backend asynchronously.
//
// Record returns immediately: records are queued on a bounded channel and
// drained by a background worker. When the channel is full the record is
// dropped and counted, so recording can never block or slow a dispatch.
type Recorder struct {
	backend    Backend
	config     *RecorderConfig
	recordChan chan *Record
	dropped    atomic.Int64
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewRecorder creates a recorder writing to the given backend and starts
// its background worker.
func NewRecorder(backend Backend, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultRecorderConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultRecorderConfig().WriteTimeout
	}

	r := &Recorder{
		backend:    backend,
		config:     config,
		recordChan: make(chan *Record, config.BufferSize),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "history.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues a dispatch outcome for async writing. An empty ID is
// assigned a random UUID; a zero timestamp gets the current time.
func (r *Recorder) Record(record *Record) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	select {
	case r.recordChan <- record:
	default:
		// Buffer full: drop rather than block the dispatch path
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("history buffer full, dropping records",
				"dropped_total", r.dropped.Load(),
			)
		}
	}
}

// Dropped returns the number of records dropped due to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains queued records and stops the worker.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
	return nil
}

// worker drains the record channel until Close.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.write(record)
		case <-r.done:
			// Drain what is already queued before exiting
			for {
				select {
				case record := <-r.recordChan:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

// write performs one backend write with the configured timeout.
func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.backend.Store(ctx, record); err != nil {
		r.logger.Error("failed to store history record",
			"record_id", record.ID,
			"task_id", record.TaskID,
			"error", err,
		)
	}
}
