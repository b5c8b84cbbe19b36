package dispatch

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded on the dispatch counter.
const (
	outcomeSuccess           = "success"
	outcomeResourceExhausted = "resource_exhausted"
	outcomeRetryExhausted    = "retry_exhausted"
	outcomeFatal             = "fatal"
	outcomeCanceled          = "canceled"
)

// Metrics contains Prometheus metrics for the dispatch package.
type Metrics struct {
	// Dispatch outcomes
	dispatches *prometheus.CounterVec

	// Retries consumed per dispatch
	retries prometheus.Histogram

	// Total wait time (limiter acquisition + backoff) per dispatch
	waitTime prometheus.Histogram

	// Calls currently in flight
	inFlight prometheus.Gauge

	// Degraded dispatches (secondary limiter timeout, reduced reservation)
	degradations prometheus.Counter

	// Limiter wait timeouts by limiter name
	acquireTimeouts *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on the given registerer.
// A nil registerer registers on the Prometheus default; tests pass a
// private registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callisto_dispatch_total",
				Help: "Total number of dispatches by outcome",
			},
			[]string{"outcome"},
		),

		retries: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callisto_dispatch_retries",
				Help:    "Retries consumed per dispatch",
				Buckets: prometheus.LinearBuckets(0, 1, 8),
			},
		),

		waitTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callisto_dispatch_wait_seconds",
				Help:    "Time spent waiting on limiters and backoff per dispatch",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),

		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "callisto_dispatch_in_flight",
				Help: "Calls currently in flight",
			},
		),

		degradations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "callisto_dispatch_degradations_total",
				Help: "Dispatches that proceeded with a reduced secondary reservation",
			},
		),

		acquireTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callisto_dispatch_acquire_timeouts_total",
				Help: "Limiter token wait timeouts by limiter",
			},
			[]string{"limiter"},
		),
	}
}

// recordResult records the outcome of a completed dispatch.
// Safe to call on a nil receiver (metrics disabled).
func (m *Metrics) recordResult(result DispatchResult) {
	if m == nil {
		return
	}

	m.dispatches.WithLabelValues(outcomeLabel(result)).Inc()
	m.retries.Observe(float64(result.Retries))
	m.waitTime.Observe(result.WaitTime.Seconds())
}

// recordDegradation counts a degraded dispatch.
func (m *Metrics) recordDegradation() {
	if m == nil {
		return
	}
	m.degradations.Inc()
}

// recordAcquireTimeout counts a limiter wait timeout.
func (m *Metrics) recordAcquireTimeout(limiter string) {
	if m == nil {
		return
	}
	m.acquireTimeouts.WithLabelValues(limiter).Inc()
}

// callStarted marks a call in flight and returns a completion callback.
func (m *Metrics) callStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return func() { m.inFlight.Dec() }
}

// outcomeLabel classifies a result for the dispatch counter.
func outcomeLabel(result DispatchResult) string {
	if result.Success {
		return outcomeSuccess
	}

	switch result.Err.(type) {
	case *ResourceExhaustedError, *DegradationExceededError:
		return outcomeResourceExhausted
	case *RetryExhaustedError:
		return outcomeRetryExhausted
	}

	if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
		return outcomeCanceled
	}
	return outcomeFatal
}
