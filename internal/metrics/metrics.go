// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation Metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"outcome"}, // "ok", "degraded", "error"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	RecommendationNonDurable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_non_durable_total",
			Help: "Total number of recommendations whose profile update could not be persisted",
		},
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of candidates retrieved before reranking",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Vector Index Metrics
	IndexSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vector_index_size",
			Help: "Current number of indexed vectors",
		},
		[]string{"backend"},
	)

	IndexSearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vector_index_search_duration_seconds",
			Help:    "Vector index search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	IndexSearchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vector_index_search_errors_total",
			Help: "Total number of vector index search errors",
		},
		[]string{"backend"},
	)

	IndexSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vector_index_snapshots_total",
			Help: "Total number of index snapshot operations",
		},
		[]string{"result"}, // "success", "failure"
	)

	IndexSnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vector_index_snapshot_last_success_timestamp",
			Help: "Unix timestamp of the last successful index snapshot",
		},
	)

	// Secure Store Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secure_store_operations_total",
			Help: "Total number of secure store operations",
		},
		[]string{"operation", "result"}, // operation: "put", "get", "delete"
	)

	StoreAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secure_store_auth_failures_total",
			Help: "Total number of decrypt authentication failures (tampering or wrong key)",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordRecommendation records the outcome of one recommendation request.
func RecordRecommendation(duration time.Duration, candidates int, degraded, durable bool, err error) {
	RecommendationDuration.Observe(duration.Seconds())
	RecommendationCandidates.Observe(float64(candidates))
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case degraded:
		outcome = "degraded"
	}
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	if err == nil && !durable {
		RecommendationNonDurable.Inc()
	}
}

// RecordIndexSearch records one index search.
func RecordIndexSearch(backend string, duration time.Duration, err error) {
	IndexSearchDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err != nil {
		IndexSearchErrors.WithLabelValues(backend).Inc()
	}
}

// RecordIndexSnapshot records one snapshot attempt.
func RecordIndexSnapshot(err error) {
	if err != nil {
		IndexSnapshots.WithLabelValues("failure").Inc()
		return
	}
	IndexSnapshots.WithLabelValues("success").Inc()
	IndexSnapshotLastSuccess.SetToCurrentTime()
}

// RecordStoreOperation records one secure store operation.
func RecordStoreOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	StoreOperations.WithLabelValues(operation, result).Inc()
}

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// SetCircuitBreakerState publishes a breaker state by name.
// The numeric mapping matches sony/gobreaker's State ordering.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTransition counts one state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}
