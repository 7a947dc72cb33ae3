// Package metrics provides Prometheus instrumentation for the local files index.
//
// All metrics are package-level promauto variables prefixed with "localfiles_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Store Metrics
//   - StoreOperationsTotal: Counter by backend (sqlite/redis), operation and status
//   - StoreOperationDuration: Histogram by backend and operation
//   - StoreLockWaitDuration: Time spent waiting on a per-key inverted index lock
//   - DBSizeBytes: SQLite file sizes (main, WAL, SHM)
//
// ## Ingestion Metrics
//   - IngestOutcomesTotal: one increment per finished candidate, labelled by outcome
//   - IngestDuration, IngestInFlight, PipelineQueueDepth
//   - TorrentExpansionsTotal, TorrentFilesExpanded
//   - ResolverRequestsTotal, ResolverRequestDuration
//
// ## Scan Metrics
//   - ScanPassesTotal (by cold/warm), ScanLastPassTimestamp, ScanLastPassDuration
//   - ScanIsRunning, ScanWarm
//   - DiscoveryCandidatesTotal, DiscoveryErrors (by source), WalkTimeoutsTotal
//   - WatcherEventsTotal, WatcherErrors, WatchedDirectories
//
// ## Query Metrics
//   - QueryRequestsTotal, QueryDuration (by addon method), StreamsReturned
//
// ## Index Contents
//
// Updated by the periodic Collector from a StatsProvider:
//   - IndexRecordsTotal (indexed/tombstone), IndexInvertedKeys, IndexDistinctIDs
//
// # Usage
//
// Metrics are exposed on a dedicated server (METRICS_PORT) via promhttp.
// InitializeMetrics pre-creates label combinations so dashboards have series
// from the first scrape.
package metrics
