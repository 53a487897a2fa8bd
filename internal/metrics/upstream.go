// SPDX-License-Identifier: MIT

// Package metrics exposes the daemon's Prometheus collectors. All metrics
// live in the fsa_ namespace and are registered via promauto at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_upstream_requests_total",
		Help: "FreeStuff API requests by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=success|error

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsa_upstream_request_duration_seconds",
		Help:    "FreeStuff API request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	upstreamRatelimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsa_upstream_ratelimit_wait_seconds",
		Help:    "Time spent waiting on the client-side rate limiter",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsa_circuit_breaker_state",
		Help: "Circuit breaker state by component (active state=1, others 0)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsa_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// IncUpstreamRequest records one API call outcome.
func IncUpstreamRequest(operation, outcome string) {
	upstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveUpstreamDuration records the latency of one API call.
func ObserveUpstreamDuration(operation string, d time.Duration) {
	upstreamRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRatelimitWait records time spent blocked on the client rate limiter.
func ObserveRatelimitWait(d time.Duration) {
	upstreamRatelimitWait.Observe(d.Seconds())
}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component string) {
	circuitBreakerTrips.WithLabelValues(component).Inc()
}
