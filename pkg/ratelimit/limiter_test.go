package ratelimit

import (
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Strategy Parsing Tests
// ============================================================================

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected Strategy
		wantErr  bool
	}{
		{"token_bucket", StrategyTokenBucket, false},
		{"fixed_window", StrategyFixedWindow, false},
		{"sliding_window", StrategySlidingWindow, false},
		{"leaky_bucket", StrategyLeakyBucket, false},
		{"", "", true},
		{"sliding_log", "", true},
		{"TOKEN_BUCKET", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseStrategy(%q): expected error", tt.input)
				}
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Errorf("ParseStrategy(%q): expected ErrUnknownStrategy, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrategy(%q): unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseStrategy(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// ============================================================================
// Factory Tests
// ============================================================================

func TestNew_StrategySelection(t *testing.T) {
	tests := []struct {
		strategy Strategy
	}{
		{StrategyTokenBucket},
		{StrategyFixedWindow},
		{StrategySlidingWindow},
		{StrategyLeakyBucket},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			lim, err := New(tt.strategy, Config{Rate: 10})
			if err != nil {
				t.Fatalf("New(%s): unexpected error: %v", tt.strategy, err)
			}
			if lim.Strategy() != tt.strategy {
				t.Errorf("Strategy() = %q, want %q", lim.Strategy(), tt.strategy)
			}
			if !lim.Acquire(1) {
				t.Errorf("New(%s): fresh limiter rejected a single unit", tt.strategy)
			}
		})
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		cfg      Config
	}{
		{"zero rate", StrategyTokenBucket, Config{}},
		{"negative rate", StrategyLeakyBucket, Config{Rate: -1}},
		{"negative per", StrategyTokenBucket, Config{Rate: 5, Per: -time.Second}},
		{"negative capacity", StrategyTokenBucket, Config{Rate: 5, Capacity: -1}},
		{"negative window", StrategyFixedWindow, Config{Rate: 5, Window: -time.Second}},
		{"unknown strategy", Strategy("bogus"), Config{Rate: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.strategy, tt.cfg)
			if err == nil {
				t.Fatal("Expected configuration error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected *ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestNew_RatePerInterpretation(t *testing.T) {
	// 60 units per minute = 1/sec; capacity defaults to the rate value
	lim, err := New(StrategyTokenBucket, Config{Rate: 60, Per: time.Minute})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !lim.Acquire(60) {
		t.Error("Expected default capacity to cover the configured rate")
	}
	if lim.Acquire(1) {
		t.Error("Expected bucket to be drained")
	}

	// Refill runs at the normalized per-second rate, ~1/sec here
	time.Sleep(1100 * time.Millisecond)
	if !lim.Acquire(1) {
		t.Error("Expected ~1 token after 1.1s at 60/min")
	}
}
