package metrics

// Ingest outcome labels.
var ingestOutcomes = []string{
	"rejected", "expanded", "already_indexed", "vanished",
	"tombstoned", "indexed", "failed",
}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(backend string) {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"get", "put", "scan"} {
		for _, ns := range []string{"files", "meta"} {
			StoreOperationsTotal.WithLabelValues(backend, ns+"."+op, "success")
			StoreOperationsTotal.WithLabelValues(backend, ns+"."+op, "error")
			StoreOperationDuration.WithLabelValues(backend, ns+"."+op)
		}
	}

	for _, outcome := range ingestOutcomes {
		IngestOutcomesTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "malformed", "read_error"} {
		TorrentExpansionsTotal.WithLabelValues(status)
	}

	for _, result := range []string{"hit", "miss", "error", "cached"} {
		ResolverRequestsTotal.WithLabelValues(result)
	}

	for _, state := range []string{"cold", "warm"} {
		ScanPassesTotal.WithLabelValues(state)
	}

	for _, source := range []string{"native", "walk", "watch", "manual"} {
		DiscoveryCandidatesTotal.WithLabelValues(source)
		DiscoveryErrors.WithLabelValues(source)
	}

	for _, method := range []string{"stream.find", "meta.find", "meta"} {
		for _, status := range []string{"success", "error"} {
			QueryRequestsTotal.WithLabelValues(method, status)
		}
		QueryDuration.WithLabelValues(method)
	}

	for _, kind := range []string{"indexed", "tombstone"} {
		IndexRecordsTotal.WithLabelValues(kind)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op, "unknown")
		FilesystemRetrySuccess.WithLabelValues(op, "unknown")
		FilesystemRetryFailures.WithLabelValues(op, "unknown")
		FilesystemStaleErrors.WithLabelValues(op, "unknown")
		FilesystemRetryDuration.WithLabelValues(op, "unknown")
	}
}
