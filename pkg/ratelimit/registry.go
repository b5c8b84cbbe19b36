package ratelimit

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Registry is a thread-safe named collection of limiters.
//
// It holds one limiter per external resource class (e.g.,
// "chat-api-requests", "chat-api-tokens", "image-api-requests") and owns
// only lifecycle: add, remove, get, list. A limiter is created once at add
// time and lives until explicitly removed; it is never reconfigured in
// place. Replacement is Remove followed by Add.
//
// # Thread Safety
//
// Structural changes (Add/Remove) take an exclusive lock. Lookups take a
// read lock, so concurrent Gets of existing limiters never block each
// other, only structural changes.
type Registry struct {
	limiters map[string]*registryEntry
	mu       sync.RWMutex
}

// registryEntry pairs a limiter with its last-use timestamp for idle
// sweeping. lastUsed is an atomic unix-nano so Get can update it under the
// read lock.
type registryEntry struct {
	limiter  Limiter
	lastUsed atomic.Int64
}

// NewRegistry creates an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{
		limiters: make(map[string]*registryEntry),
	}
}

// Add constructs a limiter for the given strategy and registers it under
// name. Returns ErrLimiterExists if the name is already taken, or a
// ConfigError if the configuration is invalid.
func (r *Registry) Add(name string, strategy Strategy, cfg Config) error {
	limiter, err := New(strategy, cfg)
	if err != nil {
		return err
	}
	return r.AddLimiter(name, limiter)
}

// AddLimiter registers an already-constructed limiter under name.
// Returns ErrLimiterExists if the name is already taken.
func (r *Registry) AddLimiter(name string, limiter Limiter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.limiters[name]; exists {
		return fmt.Errorf("%w: %q", ErrLimiterExists, name)
	}

	entry := &registryEntry{limiter: limiter}
	entry.lastUsed.Store(time.Now().UnixNano())
	r.limiters[name] = entry
	return nil
}

// Remove unregisters the limiter under name.
// Returns ErrLimiterNotFound if no limiter is registered under name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.limiters[name]; !exists {
		return fmt.Errorf("%w: %q", ErrLimiterNotFound, name)
	}

	delete(r.limiters, name)
	return nil
}

// Get returns the limiter registered under name and marks it used.
// Returns ErrLimiterNotFound if no limiter is registered under name.
func (r *Registry) Get(name string) (Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.limiters[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrLimiterNotFound, name)
	}

	entry.lastUsed.Store(time.Now().UnixNano())
	return entry.limiter, nil
}

// List returns the registered limiter names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered limiters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// sweepIdle removes limiters whose last use is older than ttl and returns
// the removed names. Used by the Janitor.
func (r *Registry) sweepIdle(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl).UnixNano()

	var removed []string
	for name, entry := range r.limiters {
		if entry.lastUsed.Load() < cutoff {
			delete(r.limiters, name)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}
