package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestJanitor_Sweep(t *testing.T) {
	reg := NewRegistry()
	reg.Add("idle", StrategyTokenBucket, Config{Rate: 1})
	reg.Add("active", StrategyTokenBucket, Config{Rate: 1})

	janitor := NewJanitor(reg, JanitorConfig{
		Schedule: "* * * * *",
		IdleTTL:  30 * time.Millisecond,
	})

	time.Sleep(50 * time.Millisecond)
	reg.Get("active")

	// Run a single cycle directly rather than waiting on the schedule
	janitor.sweep()

	if _, err := reg.Get("idle"); err == nil {
		t.Error("Expected idle limiter to be swept")
	}
	if _, err := reg.Get("active"); err != nil {
		t.Error("Expected active limiter to survive")
	}
}

func TestJanitor_EmptyScheduleIsNoop(t *testing.T) {
	janitor := NewJanitor(NewRegistry(), JanitorConfig{})

	if err := janitor.Start(context.Background()); err != nil {
		t.Fatalf("Expected empty schedule to be a no-op, got %v", err)
	}
	janitor.Stop()
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	janitor := NewJanitor(NewRegistry(), JanitorConfig{
		Schedule: "not a cron spec",
		IdleTTL:  time.Minute,
	})

	if err := janitor.Start(context.Background()); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestJanitor_RequiresPositiveTTL(t *testing.T) {
	janitor := NewJanitor(NewRegistry(), JanitorConfig{
		Schedule: "*/5 * * * *",
	})

	if err := janitor.Start(context.Background()); err == nil {
		t.Error("Expected error for non-positive idle TTL")
	}
}

func TestJanitor_StartStop(t *testing.T) {
	janitor := NewJanitor(NewRegistry(), JanitorConfig{
		Schedule: "*/5 * * * *",
		IdleTTL:  time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := janitor.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Stop after context cancellation must be safe
	janitor.Stop()
	janitor.Stop()
}
