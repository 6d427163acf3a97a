package metrics

import (
	"time"

	"movieview/internal/logging"
)

// StatsProvider interface for collecting cache stats
type StatsProvider interface {
	CacheStats() Stats
}

// Stats holds a point-in-time snapshot of both cache tiers
type Stats struct {
	DiskBytes        int64
	DiskVideos       int
	MemoryEntries    int
	MemoryCost       int64
	MemoryCountLimit int
	MemoryCostLimit  int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.CacheStats()

	DiskCacheSizeBytes.Set(float64(stats.DiskBytes))
	DiskCacheVideos.Set(float64(stats.DiskVideos))
	MemoryCacheEntries.Set(float64(stats.MemoryEntries))
	MemoryCacheCostBytes.Set(float64(stats.MemoryCost))
	MemoryCacheCountLimit.Set(float64(stats.MemoryCountLimit))
	MemoryCacheCostLimit.Set(float64(stats.MemoryCostLimit))

	logging.Debug("Metrics collected: disk=%d bytes/%d videos, memory=%d entries/%d bytes",
		stats.DiskBytes, stats.DiskVideos, stats.MemoryEntries, stats.MemoryCost)
}
