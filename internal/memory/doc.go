// Package memory sizes and watches process memory for the thumbnail caches.
//
// Decoded thumbnails are large (a 1280x720 frame is roughly 3.5 MB of RGBA),
// so the in-memory tier needs a cost ceiling derived from the machine it runs
// on, and a way to shrink when the heap approaches its limit.
//
// # Limits
//
// [PhysicalMemory] reads MemTotal from /proc/meminfo. [DefaultCacheCostLimit]
// turns it into the memory cache ceiling: a quarter of physical memory,
// capped at 4 GiB.
//
// [ApplyLimit] sets GOMEMLIMIT from a container limit and a heap ratio
// (from configuration) unless GOMEMLIMIT is already set in the environment.
// Call it early in main, before significant allocations.
//
// # Monitoring
//
// [Monitor] samples the heap on an interval. When usage crosses the critical
// water mark it notifies every subscriber registered with [Monitor.Subscribe]
// once per episode, and pauses callers of [Monitor.WaitIfPaused] until usage
// falls back below the high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Subscribe(memCache.HandleMemoryPressure)
//	monitor.Start()
//	defer monitor.Stop()
//
// Subscribers run synchronously on the monitor goroutine and must not block.
//
// # Metrics
//
//   - movieview_memory_usage_ratio: heap allocation as a fraction of the limit
//   - movieview_memory_pressure_events_total: pressure notifications delivered
package memory
