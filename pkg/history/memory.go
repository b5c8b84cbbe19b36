package history

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds the in-memory backend when no capacity is
// given.
const DefaultMemoryCapacity = 10000

// MemoryBackend keeps records in a bounded in-process buffer. When the
// capacity is reached the oldest records are discarded. Intended for tests
// and short-lived processes.
type MemoryBackend struct {
	capacity int
	records  []*Record
	mu       sync.RWMutex
}

// NewMemoryBackend creates a memory backend holding at most capacity
// records. Values below 1 get DefaultMemoryCapacity.
func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity < 1 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryBackend{capacity: capacity}
}

// Store persists a record, discarding the oldest when full.
func (m *MemoryBackend) Store(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, record)
	if len(m.records) > m.capacity {
		m.records = append(m.records[:0], m.records[len(m.records)-m.capacity:]...)
	}
	return nil
}

// Query returns records matching the filter, newest first.
func (m *MemoryBackend) Query(_ context.Context, filter Filter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if !filter.matches(r) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Prune deletes records older than the given time.
func (m *MemoryBackend) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
