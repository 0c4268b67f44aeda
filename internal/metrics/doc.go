// Package metrics defines the Prometheus instrumentation for the
// archive indexer.
//
// Metrics are registered via promauto and grouped by subsystem:
// scanner (runs, durations, discoveries, batch pauses), archive
// processing (outcomes, entry counts, concurrency budgets), metadata
// extraction and caching, thumbnail generation, and database writes.
// To expose them, mount promhttp.Handler() on the metrics listener:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	router.Handle("/metrics", promhttp.Handler())
package metrics
