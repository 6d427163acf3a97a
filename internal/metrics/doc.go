// Package metrics provides Prometheus instrumentation for the movieview
// thumbnail cache. All metrics are prefixed with "movieview_".
//
// # Metric Categories
//
// ## Cache tiers
//
//   - CacheLookupsTotal: lookups by tier ("memory", "disk") and result ("hit", "miss")
//   - DiskCacheSizeBytes / DiskCacheVideos: current disk cache footprint
//   - DiskCacheWritesTotal: thumbnail writes by format and status
//   - DiskCacheEvictionsTotal: evicted per-video entries by reason ("lru", "corrupt")
//   - DiskCacheSweepDuration: eviction sweep latency
//   - MemoryCacheEntries / MemoryCacheCostBytes: memory tier occupancy
//   - MemoryCacheCountLimit / MemoryCacheCostLimit: current ceilings
//
// ## Extraction and sessions
//
//   - ExtractionsTotal / ExtractionDuration: frame extractor calls
//   - ProbesTotal: video probes served from the probe cache or ffprobe
//   - SessionsTotal / SessionsInProgress / SessionDuration
//
// ## Memory pressure
//
//   - MemoryUsageRatio: heap allocation relative to the monitored limit
//   - MemoryPressureEvents: notifications delivered to subscribers
//
// ## Filesystem
//
// ESTALE retry counters recorded through the filesystem.Observer
// implementation returned by NewFilesystemObserver.
//
// # Collection
//
// Gauges describing cache occupancy are refreshed by a Collector that polls a
// StatsProvider on an interval:
//
//	collector := metrics.NewCollector(provider, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
package metrics
