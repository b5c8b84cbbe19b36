package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/dispatch"
	"mercator-hq/callisto/pkg/history"
	"mercator-hq/callisto/pkg/ratelimit"
)

// Options contains construction dependencies for the Service that are not
// part of file configuration.
type Options struct {
	// Registerer receives dispatch metrics. Nil uses the Prometheus
	// default registerer; tests pass a private registry.
	Registerer prometheus.Registerer

	// DisableMetrics turns metric collection off entirely.
	DisableMetrics bool

	// Retryable is the default failure classification for dispatches.
	// Nil retries nothing.
	Retryable func(error) bool

	// OnResult, when set, receives every terminal dispatch result as it
	// completes. Runs on the dispatching goroutine; must not block.
	OnResult func(dispatch.DispatchResult)

	// HistoryBackend overrides the backend selected by configuration.
	HistoryBackend history.Backend

	// Logger receives service lifecycle logs. Nil uses slog.Default.
	Logger *slog.Logger
}

// Service is the facade over the rate-limiting and dispatch core.
type Service struct {
	cfg        *config.Config
	registry   *ratelimit.Registry
	dispatcher *dispatch.Dispatcher
	batch      *dispatch.BatchDispatcher
	recorder   *history.Recorder
	backend    history.Backend
	janitor    *ratelimit.Janitor
	logger     *slog.Logger
}

// New builds a Service from configuration. A nil cfg uses defaults: empty
// registry, default dispatch settings, history disabled.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "throttle")
	}

	registry := ratelimit.NewRegistry()
	for name, lc := range cfg.Limiters {
		strategy, err := ratelimit.ParseStrategy(lc.Strategy)
		if err != nil {
			return nil, fmt.Errorf("limiter %q: %w", name, err)
		}
		if err := registry.Add(name, strategy, lc.RateLimitConfig()); err != nil {
			return nil, fmt.Errorf("limiter %q: %w", name, err)
		}
	}

	var metrics *dispatch.Metrics
	if !opts.DisableMetrics {
		metrics = dispatch.NewMetrics(opts.Registerer)
	}

	dispatcher := dispatch.NewDispatcher(registry, dispatch.Options{
		Limiters:   cfg.Dispatch.Limiters,
		MaxRetries: cfg.Dispatch.MaxRetries,
		Backoff: dispatch.Backoff{
			Base:   cfg.Dispatch.BackoffBase,
			Factor: cfg.Dispatch.BackoffFactor,
			Max:    cfg.Dispatch.BackoffMax,
			Jitter: cfg.Dispatch.BackoffJitter,
		},
		AcquireTimeout:             cfg.Dispatch.AcquireTimeout,
		Retryable:                  opts.Retryable,
		OnResult:                   opts.OnResult,
		MaxConsecutiveDegradations: cfg.Dispatch.MaxConsecutiveDegradations,
		Metrics:                    metrics,
	})

	s := &Service{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		batch:      dispatch.NewBatchDispatcher(dispatcher, cfg.Dispatch.MaxConcurrent),
		logger:     logger,
	}

	if cfg.History.Enabled || opts.HistoryBackend != nil {
		backend := opts.HistoryBackend
		if backend == nil {
			var err error
			backend, err = newBackend(cfg.History)
			if err != nil {
				return nil, err
			}
		}
		s.backend = backend
		s.recorder = history.NewRecorder(backend, &history.RecorderConfig{
			BufferSize: cfg.History.BufferSize,
		})
	}

	if cfg.Janitor.Schedule != "" {
		s.janitor = ratelimit.NewJanitor(registry, ratelimit.JanitorConfig{
			Schedule: cfg.Janitor.Schedule,
			IdleTTL:  cfg.Janitor.IdleTTL,
		})
	}

	return s, nil
}

// newBackend constructs the history backend selected by configuration.
func newBackend(hc config.HistoryConfig) (history.Backend, error) {
	switch hc.Backend {
	case "sqlite":
		return history.NewSQLiteBackend(&history.SQLiteConfig{Path: hc.SQLitePath})
	case "memory", "":
		return history.NewMemoryBackend(0), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}

// Start launches background work (the registry janitor, when configured).
// The work stops when ctx is canceled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s.janitor != nil {
		if err := s.janitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start janitor: %w", err)
		}
	}
	return nil
}

// Registry exposes the limiter registry for direct lifecycle control.
func (s *Service) Registry() *ratelimit.Registry {
	return s.registry
}

// CreateLimiter constructs and registers a limiter under name.
func (s *Service) CreateLimiter(name string, strategy ratelimit.Strategy, cfg ratelimit.Config) error {
	return s.registry.Add(name, strategy, cfg)
}

// RemoveLimiter unregisters the limiter under name. Recreate it with
// CreateLimiter to change a limiter's parameters; limiters are never
// reconfigured in place.
func (s *Service) RemoveLimiter(name string) error {
	return s.registry.Remove(name)
}

// Acquire attempts to consume n units from the named limiter without
// blocking.
func (s *Service) Acquire(name string, n int64) (bool, error) {
	limiter, err := s.registry.Get(name)
	if err != nil {
		return false, err
	}
	return limiter.Acquire(n), nil
}

// WaitForToken blocks until n units are available from the named limiter,
// the timeout elapses, or ctx is canceled.
func (s *Service) WaitForToken(ctx context.Context, name string, n int64, timeout time.Duration) (bool, error) {
	limiter, err := s.registry.Get(name)
	if err != nil {
		return false, err
	}
	return limiter.Wait(ctx, n, timeout), nil
}

// Dispatch executes one task through the dispatcher and records its
// outcome when history is enabled.
func (s *Service) Dispatch(ctx context.Context, task dispatch.CallTask) dispatch.DispatchResult {
	result := s.dispatcher.Dispatch(ctx, task)
	s.record(task, result)
	return result
}

// DispatchBatch fans the tasks out under the configured concurrency
// budget. The returned BatchResult covers every task; only cancellation
// or a systemic failure yields a batch-level error.
func (s *Service) DispatchBatch(ctx context.Context, tasks []dispatch.CallTask) (*dispatch.BatchResult, error) {
	batch, err := s.batch.DispatchBatch(ctx, tasks)
	if batch != nil && s.recorder != nil {
		for i, result := range batch.Results {
			s.record(tasks[i], result)
		}
	}
	return batch, err
}

// History queries recorded dispatch outcomes. Returns nil when history is
// disabled.
func (s *Service) History(ctx context.Context, filter history.Filter) ([]*history.Record, error) {
	if s.backend == nil {
		return nil, nil
	}
	return s.backend.Query(ctx, filter)
}

// PruneHistory deletes records older than the configured retention.
func (s *Service) PruneHistory(ctx context.Context) (int64, error) {
	if s.backend == nil {
		return 0, nil
	}
	return s.backend.Prune(ctx, time.Now().Add(-s.cfg.History.Retention))
}

// Close stops background work and releases resources.
func (s *Service) Close() error {
	if s.janitor != nil {
		s.janitor.Stop()
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			return err
		}
	}
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}

// record writes one dispatch outcome to history.
func (s *Service) record(task dispatch.CallTask, result dispatch.DispatchResult) {
	if s.recorder == nil {
		return
	}

	limiters := task.Limiters
	if len(limiters) == 0 {
		limiters = s.cfg.Dispatch.Limiters
	}

	var errText string
	if result.Err != nil {
		errText = result.Err.Error()
	}

	s.recorder.Record(&history.Record{
		TaskID:   result.TaskID,
		Limiters: limiters,
		Success:  result.Success,
		Error:    errText,
		Retries:  result.Retries,
		WaitTime: result.WaitTime,
		Degraded: result.Degraded,
	})
}
