package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_scan_runs_total",
			Help: "Total number of scan runs by type",
		},
		[]string{"type"}, // "full", "incremental"
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_scan_duration_seconds",
			Help:    "Duration of directory scan runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_indexer_scan_running",
			Help: "Whether a scan is currently in progress (1 or 0)",
		},
	)

	ScanFilesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_scan_files_discovered_total",
			Help: "Total number of candidate files discovered by type",
		},
		[]string{"type"}, // "image", "archive"
	)

	ScanFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_scan_files_skipped_total",
			Help: "Total number of files skipped due to validation or errors",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_scan_errors_total",
			Help: "Total number of scan errors",
		},
	)

	ScanBatchPause = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_scan_batch_pause_seconds",
			Help:    "Inter-batch rest pauses applied by the disk-aware batcher",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2},
		},
	)

	DirectoriesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_directories_purged_total",
			Help: "Total number of stale directories purged from the index",
		},
	)
)

// Archive processing metrics
var (
	ArchivesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_archives_processed_total",
			Help: "Total number of archives processed by outcome",
		},
		[]string{"outcome"}, // "persisted", "below_threshold", "error"
	)

	ArchiveProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_archive_process_duration_seconds",
			Help:    "Time to process a single archive end to end",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ArchiveEntriesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_archive_entries_processed_total",
			Help: "Total number of archive entries processed",
		},
	)

	ArchiveEntryTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_archive_entry_timeouts_total",
			Help: "Total number of archive entries skipped due to extraction timeout",
		},
	)

	ArchiveConcurrencyBudget = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_archive_concurrency_budget",
			Help:    "Per-archive entry concurrency budgets chosen by the heuristic",
			Buckets: []float64{2, 4, 8, 12, 16},
		},
	)
)

// Metadata extraction metrics
var (
	MetadataExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_metadata_extractions_total",
			Help: "Total number of metadata extractions by path and outcome",
		},
		[]string{"path", "outcome"}, // path: "fast", "full"; outcome: "success", "fallback", "error"
	)

	MetadataCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_metadata_cache_hits_total",
			Help: "Total number of metadata cache hits",
		},
	)

	MetadataCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_metadata_cache_misses_total",
			Help: "Total number of metadata cache misses",
		},
	)

	MetadataCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_indexer_metadata_cache_entries",
			Help: "Current number of entries in the metadata cache",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_thumbnail_generations_total",
			Help: "Total number of thumbnail generations by outcome",
		},
		[]string{"outcome"}, // "success", "error", "dedup"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_thumbnail_generation_duration_seconds",
			Help:    "Time to decode, resize and encode a thumbnail",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_indexer_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_db_transaction_duration_seconds",
			Help:    "Batch transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archive_indexer_db_rows_affected",
			Help:    "Rows affected per write operation",
			Buckets: []float64{1, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	ArchivesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_indexer_archives_indexed",
			Help: "Current number of archives in the index",
		},
	)
)

// Memory backpressure metrics.
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_indexer_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_indexer_memory_paused",
			Help: "Whether scanning is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_indexer_memory_gc_pauses_total",
			Help: "Forced garbage collections triggered by memory pressure",
		},
	)
)
