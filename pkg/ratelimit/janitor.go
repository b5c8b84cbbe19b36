package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorConfig contains configuration for the registry janitor.
type JanitorConfig struct {
	// Schedule is a standard cron expression for sweep runs
	// (e.g., "*/5 * * * *" for every five minutes).
	Schedule string

	// IdleTTL is how long a limiter may go unused before it is removed.
	IdleTTL time.Duration
}

// Janitor removes idle limiters from a Registry on a cron schedule.
//
// Deployments that create per-key limiters dynamically would otherwise
// grow the registry without bound. The janitor sweeps limiters whose last
// use is older than the configured TTL; a swept name can simply be added
// again on next use.
type Janitor struct {
	registry *Registry
	config   JanitorConfig
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
}

// NewJanitor creates a janitor for the given registry.
func NewJanitor(registry *Registry, config JanitorConfig) *Janitor {
	return &Janitor{
		registry: registry,
		config:   config,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "ratelimit.janitor"),
	}
}

// Start begins scheduled sweeping. If Schedule is empty the janitor does
// nothing. The janitor stops when ctx is canceled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.config.Schedule == "" {
		j.logger.Info("sweep schedule not configured, skipping janitor")
		return nil
	}
	if j.config.IdleTTL <= 0 {
		return fmt.Errorf("janitor idle TTL must be positive, got %s", j.config.IdleTTL)
	}

	if _, err := cron.ParseStandard(j.config.Schedule); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.config.Schedule, err)
	}

	if _, err := j.cron.AddFunc(j.config.Schedule, j.sweep); err != nil {
		return fmt.Errorf("failed to schedule janitor sweep: %w", err)
	}

	j.cron.Start()
	j.running = true

	j.logger.Info("registry janitor started",
		"schedule", j.config.Schedule,
		"idle_ttl", j.config.IdleTTL,
	)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	return nil
}

// Stop halts scheduled sweeping. Safe to call multiple times.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.running {
		return
	}

	j.cron.Stop()
	j.running = false
	j.logger.Info("registry janitor stopped")
}

// sweep executes one sweep cycle.
func (j *Janitor) sweep() {
	removed := j.registry.sweepIdle(j.config.IdleTTL)
	if len(removed) > 0 {
		j.logger.Info("swept idle limiters",
			"count", len(removed),
			"names", removed,
		)
	}
}
