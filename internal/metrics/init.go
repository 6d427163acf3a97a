package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, tier := range []string{"memory", "disk"} {
		CacheLookupsTotal.WithLabelValues(tier, "hit")
		CacheLookupsTotal.WithLabelValues(tier, "miss")
	}

	for _, format := range []string{"jpeg", "heic"} {
		DiskCacheWritesTotal.WithLabelValues(format, "success")
		DiskCacheWritesTotal.WithLabelValues(format, "error")
	}

	for _, reason := range []string{"lru", "corrupt"} {
		DiskCacheEvictionsTotal.WithLabelValues(reason)
	}

	for _, status := range []string{"success", "error", "cancelled"} {
		ExtractionsTotal.WithLabelValues(status)
	}

	for _, source := range []string{"cache", "ffprobe"} {
		ProbesTotal.WithLabelValues(source)
	}

	for _, state := range []string{"completed", "cancelled", "failed"} {
		SessionsTotal.WithLabelValues(state)
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	for _, op := range []string{"add_bytes", "touch", "delete", "total", "entries", "replace"} {
		IndexQueryDuration.WithLabelValues(op)
	}
	IndexTransactionDuration.WithLabelValues("commit")
	IndexTransactionDuration.WithLabelValues("rollback")

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
