package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// blockingBackend holds writes until released, to fill the recorder buffer.
type blockingBackend struct {
	release chan struct{}
	stored  []*Record
	mu      sync.Mutex
}

func (b *blockingBackend) Store(ctx context.Context, record *Record) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored = append(b.stored, record)
	return nil
}

func (b *blockingBackend) Query(context.Context, Filter) ([]*Record, error) { return nil, nil }
func (b *blockingBackend) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (b *blockingBackend) Close() error                                    { return nil }

func TestRecorder_WritesAsync(t *testing.T) {
	backend := NewMemoryBackend(0)
	recorder := NewRecorder(backend, nil)

	for i := 0; i < 5; i++ {
		recorder.Record(&Record{TaskID: fmt.Sprintf("task-%d", i), Success: true})
	}
	recorder.Close()

	if backend.Len() != 5 {
		t.Errorf("Expected 5 records written, got %d", backend.Len())
	}
	if recorder.Dropped() != 0 {
		t.Errorf("Expected no drops, got %d", recorder.Dropped())
	}

	// IDs and timestamps were assigned
	records, _ := backend.Query(context.Background(), Filter{})
	for _, r := range records {
		if r.ID == "" {
			t.Error("Expected an assigned record ID")
		}
		if r.Timestamp.IsZero() {
			t.Error("Expected an assigned timestamp")
		}
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	recorder := NewRecorder(backend, &RecorderConfig{BufferSize: 2, WriteTimeout: time.Second})

	// The worker blocks on the first write; two more fill the buffer;
	// everything beyond that is dropped, never blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			recorder.Record(&Record{TaskID: fmt.Sprintf("task-%d", i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked the caller")
	}

	// Give the worker a beat to have pulled one record off the channel
	time.Sleep(50 * time.Millisecond)
	if dropped := recorder.Dropped(); dropped < 7 {
		t.Errorf("Expected at least 7 drops, got %d", dropped)
	}

	close(backend.release)
	recorder.Close()
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	backend := NewMemoryBackend(0)
	recorder := NewRecorder(backend, &RecorderConfig{BufferSize: 100})

	for i := 0; i < 50; i++ {
		recorder.Record(&Record{TaskID: fmt.Sprintf("task-%d", i)})
	}

	recorder.Close()
	recorder.Close() // Safe to repeat

	if backend.Len() != 50 {
		t.Errorf("Expected close to drain all 50 records, got %d", backend.Len())
	}
}
