package dispatch

import (
	"testing"
	"time"
)

func TestBackoff_ExponentialGrowth(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Factor: 2.0}

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for attempt, want := range expected {
		got := b.Delay(attempt)
		if got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoff_Cap(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Factor: 2.0, Max: 300 * time.Millisecond}

	if got := b.Delay(5); got != 300*time.Millisecond {
		t.Errorf("Delay(5) = %v, want capped 300ms", got)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2.0, Jitter: 0.1}

	for i := 0; i < 200; i++ {
		got := b.Delay(0)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("Delay(0) = %v, outside +/-10%% of 1s", got)
		}
	}
}

func TestBackoff_ZeroValueUsesDefaults(t *testing.T) {
	var b Backoff

	got := b.Delay(0)
	if got != DefaultBackoffBase {
		t.Errorf("Delay(0) = %v, want %v", got, DefaultBackoffBase)
	}

	// Factor below 1 must not shrink the delay
	b = Backoff{Base: 100 * time.Millisecond, Factor: 0.5}
	if got := b.Delay(3); got != 100*time.Millisecond {
		t.Errorf("Delay(3) with factor<1 = %v, want flat 100ms", got)
	}
}
