// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

/*
Package metrics provides Prometheus metrics collection and export for observability.

The package instruments the recommendation pipeline end to end:

  - Recommendation request rate, latency, and degraded/non-durable outcomes
  - Vector index size, search latency, and snapshot success
  - Secure store operation outcomes and authentication failures
  - HTTP endpoint latency and throughput
  - Circuit breaker state transitions

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Usage Example

Basic recording from the engine:

	start := time.Now()
	results, err := idx.Search(ctx, query, k, filter)
	metrics.RecordIndexSearch(idx.Backend(), time.Since(start), err)

Recording HTTP metrics happens in the router middleware; see internal/api.

# Cardinality Management

Labels are limited to low-cardinality dimensions: backend names, HTTP
methods, route patterns (never raw paths), and fixed outcome constants.
User IDs and song IDs are never used as label values.

Example PromQL queries:

	# Recommendation p95 latency
	histogram_quantile(0.95, rate(recommendation_duration_seconds_bucket[5m]))

	# Degraded-response ratio
	sum(rate(recommendations_total{outcome="degraded"}[5m]))
	/
	sum(rate(recommendations_total[5m]))

	# Snapshot staleness in seconds
	time() - vector_index_snapshot_last_success_timestamp

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent
use from multiple goroutines. The Prometheus client library handles
synchronization internally.
*/
package metrics
