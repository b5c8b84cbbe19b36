package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/callisto/pkg/ratelimit"
)

// DefaultDebounceInterval is how long the watcher waits after a file event
// before reloading, so editor write bursts trigger a single reload.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher watches the configuration file for changes and reconciles a
// limiter registry against the new limiter set.
//
// Limiters are never mutated in place: a limiter whose configuration
// changed is removed and re-added, so its counters start fresh under the
// new parameters. Limiters that disappeared from the file are removed;
// new ones are added. Dispatch defaults are not hot-swapped; they apply
// to dispatchers constructed after the reload.
type Watcher struct {
	path     string
	registry *ratelimit.Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// OnReload, when set, receives each successfully reloaded
	// configuration after the registry has been reconciled.
	OnReload func(*Config)

	mu      sync.Mutex
	applied map[string]LimiterConfig
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the configuration file at path,
// reconciling the given registry on change. The current file contents are
// applied to the registry immediately.
func NewWatcher(path string, registry *ratelimit.Registry) (*Watcher, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		registry: registry,
		logger:   slog.Default().With("component", "config.watcher"),
		debounce: DefaultDebounceInterval,
		applied:  make(map[string]LimiterConfig),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if err := w.reconcile(cfg); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins watching the file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the directory rather than the file: editors replace files
	// by rename, which drops a direct file watch.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.watcher = fsw
	w.running = true

	go w.loop()

	w.logger.Info("configuration watcher started", "path", w.path)
	return nil
}

// Stop halts watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.watcher.Close()
	w.mu.Unlock()

	// Released the lock: the event loop may be inside scheduleReload
	// waiting for it, and must drain before doneCh closes.
	<-w.doneCh

	// A debounced reload still pending must not fire after Stop. The
	// loop has exited, so nothing re-arms the timer after this.
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.logger.Info("configuration watcher stopped")
}

// loop consumes fsnotify events until stopped.
func (w *Watcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("configuration watch error", "error", err)
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload re-reads the file and reconciles the registry. A file that fails
// to load or validate leaves the previous configuration in effect.
func (w *Watcher) reload() {
	cfg, err := LoadConfigWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Error("configuration reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	if err := w.reconcile(cfg); err != nil {
		w.logger.Error("configuration reconcile failed", "error", err)
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path, "limiters", len(cfg.Limiters))

	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}

// reconcile brings the registry in line with the desired limiter set.
// Changed limiters are replaced by remove + add; their counters reset.
func (w *Watcher) reconcile(cfg *Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Drop limiters that disappeared or changed
	for name, prev := range w.applied {
		desired, keep := cfg.Limiters[name]
		if keep && desired == prev {
			continue
		}
		if err := w.registry.Remove(name); err != nil {
			w.logger.Warn("failed to remove limiter during reconcile",
				"limiter", name,
				"error", err,
			)
		}
		delete(w.applied, name)
	}

	// Add limiters that are new or replaced
	for name, desired := range cfg.Limiters {
		if _, exists := w.applied[name]; exists {
			continue
		}
		strategy, err := ratelimit.ParseStrategy(desired.Strategy)
		if err != nil {
			return fmt.Errorf("limiter %q: %w", name, err)
		}
		if err := w.registry.Add(name, strategy, desired.RateLimitConfig()); err != nil {
			return fmt.Errorf("limiter %q: %w", name, err)
		}
		w.applied[name] = desired
	}

	return nil
}
