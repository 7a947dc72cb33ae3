package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localfiles_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_store_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localfiles_store_operation_duration_seconds",
			Help:    "Key-value store operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	StoreLockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "localfiles_store_lock_wait_seconds",
			Help:    "Time spent waiting for a per-key inverted index lock",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localfiles_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingestion metrics
var (
	IngestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_ingest_outcomes_total",
			Help: "Total number of ingestions by outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "localfiles_ingest_duration_seconds",
			Help:    "Duration of a single candidate ingestion",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	IngestInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_ingest_in_flight",
			Help: "Number of candidates currently being ingested",
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_pipeline_queue_depth",
			Help: "Number of candidate paths waiting in the pipeline",
		},
	)

	TorrentExpansionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_torrent_expansions_total",
			Help: "Total number of torrent containers expanded",
		},
		[]string{"status"},
	)

	TorrentFilesExpanded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localfiles_torrent_files_expanded_total",
			Help: "Total number of virtual files produced from torrent containers",
		},
	)
)

// Resolver metrics
var (
	ResolverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_resolver_requests_total",
			Help: "Total number of canonical ID resolutions by result",
		},
		[]string{"result"}, // "hit", "miss", "error", "cached"
	)

	ResolverRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "localfiles_resolver_request_duration_seconds",
			Help:    "Duration of upstream canonical ID lookups",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Scan scheduler metrics
var (
	ScanPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_scan_passes_total",
			Help: "Total number of scan passes by scheduler state",
		},
		[]string{"state"},
	)

	ScanLastPassTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_scan_last_pass_timestamp",
			Help: "Timestamp of the last completed scan pass",
		},
	)

	ScanLastPassDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_scan_last_pass_duration_seconds",
			Help: "Duration of the last scan pass in seconds",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_scan_running",
			Help: "Whether a scan pass is currently running (1 = running, 0 = idle)",
		},
	)

	ScanWarm = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_scan_warm",
			Help: "Scheduler state (1 = warm, 0 = cold)",
		},
	)

	DiscoveryCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_discovery_candidates_total",
			Help: "Total number of candidate paths produced by discovery sources",
		},
		[]string{"source"}, // "native", "walk", "watch", "manual"
	)

	DiscoveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_discovery_errors_total",
			Help: "Total number of discovery errors by source",
		},
		[]string{"source"},
	)

	WalkTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localfiles_walk_timeouts_total",
			Help: "Total number of fallback walks stopped by their deadline",
		},
	)

	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "localfiles_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Query metrics
var (
	QueryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_query_requests_total",
			Help: "Total number of addon queries by method and status",
		},
		[]string{"method", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localfiles_query_duration_seconds",
			Help:    "Addon query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StreamsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "localfiles_streams_returned",
			Help:    "Number of stream descriptors returned per stream.find",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)
)

// Index contents
var (
	IndexRecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localfiles_index_records",
			Help: "Number of file records by kind",
		},
		[]string{"kind"}, // "indexed", "tombstone"
	)

	IndexInvertedKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_index_inverted_keys",
			Help: "Number of canonical episode keys in the inverted index",
		},
	)

	IndexDistinctIDs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_index_distinct_ids",
			Help: "Number of distinct canonical identifiers in the inverted index",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries on stale handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localfiles_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localfiles_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localfiles_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the soft memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "localfiles_memory_paused",
			Help: "Whether ingestion is paused by memory pressure (1 = paused)",
		},
	)
)
