package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movieview_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Cache tier metrics
var (
	// CacheLookupsTotal counts lookups per tier ("memory", "disk") and result ("hit", "miss").
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_cache_lookups_total",
			Help: "Total number of thumbnail cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	DiskCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_disk_cache_size_bytes",
			Help: "Total bytes stored under the thumbnail cache root",
		},
	)

	DiskCacheVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_disk_cache_videos",
			Help: "Number of per-video entries in the disk cache",
		},
	)

	DiskCacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_disk_cache_writes_total",
			Help: "Total number of thumbnail writes to the disk cache",
		},
		[]string{"format", "status"},
	)

	DiskCacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_disk_cache_evictions_total",
			Help: "Total number of per-video entries evicted from the disk cache",
		},
		[]string{"reason"}, // "lru", "corrupt"
	)

	DiskCacheEvictionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_disk_cache_eviction_errors_total",
			Help: "Total number of eviction candidates that could not be removed",
		},
	)

	DiskCacheEvictionBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_disk_cache_evicted_bytes_total",
			Help: "Total bytes reclaimed by eviction",
		},
	)

	DiskCacheSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "movieview_disk_cache_sweep_duration_seconds",
			Help:    "Duration of eviction sweeps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	DiskCacheReconcilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_disk_cache_reconciles_total",
			Help: "Total number of full size-index rebuilds from a directory walk",
		},
	)

	MemoryCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_memory_cache_entries",
			Help: "Number of decoded thumbnails held in memory",
		},
	)

	MemoryCacheCostBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_memory_cache_cost_bytes",
			Help: "Estimated aggregate cost of decoded thumbnails held in memory",
		},
	)

	MemoryCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_memory_cache_evictions_total",
			Help: "Total number of entries evicted from the memory cache",
		},
	)

	MemoryCacheCountLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_memory_cache_count_limit",
			Help: "Current entry-count ceiling of the memory cache",
		},
	)

	MemoryCacheCostLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_memory_cache_cost_limit_bytes",
			Help: "Current cost ceiling of the memory cache",
		},
	)
)

// Extraction and session metrics
var (
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_frame_extractions_total",
			Help: "Total number of frame extractor invocations",
		},
		[]string{"status"}, // "success", "error", "cancelled"
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "movieview_frame_extraction_duration_seconds",
			Help:    "Frame extraction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_probes_total",
			Help: "Total number of video probes by source",
		},
		[]string{"source"}, // "cache", "ffprobe"
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_sessions_total",
			Help: "Total number of thumbnail sessions by terminal state",
		},
		[]string{"state"},
	)

	SessionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_sessions_in_progress",
			Help: "Number of thumbnail sessions currently running",
		},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "movieview_session_duration_seconds",
			Help:    "Thumbnail session duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)
)

// Size index metrics
var (
	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movieview_index_query_duration_seconds",
			Help:    "Size index query duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	IndexTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movieview_index_transaction_duration_seconds",
			Help:    "Size index transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"status"},
	)
)

// Memory pressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the monitored memory limit",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_memory_pressure_events_total",
			Help: "Total number of memory pressure notifications delivered",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after ESTALE",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after a retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation"},
	)
)

// Media watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movieview_watcher_events_total",
			Help: "Total number of file system events seen in the media directory",
		},
		[]string{"type"},
	)

	WatcherInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_watcher_invalidations_total",
			Help: "Total number of videos whose cached thumbnails were dropped after a change",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "movieview_watcher_errors_total",
			Help: "Total number of media watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movieview_watched_directories",
			Help: "Number of directories being watched for changes",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movieview_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
