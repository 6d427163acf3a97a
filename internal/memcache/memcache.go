// Package memcache is the in-process tier of the thumbnail cache: decoded
// images keyed by thumbnail key, bounded by an entry count and by an
// estimated byte cost.
//
// Entries are evicted least recently used first whenever either ceiling
// would be exceeded. Eviction is silent; a caller that misses simply falls
// through to the disk tier.
package memcache

import (
	"container/list"
	"image"
	"strings"
	"sync"
	"time"

	"movieview/internal/logging"
	"movieview/internal/metrics"
	"movieview/internal/thumbnail"
)

const (
	// DefaultCountLimit is the default maximum number of entries.
	DefaultCountLimit = 1000

	// bytesPerPixel and overheadFactor estimate the footprint of a decoded
	// RGBA image plus its bookkeeping.
	bytesPerPixel  = 4
	overheadFactor = 1.2

	// pressureDivisor shrinks the count ceiling on memory pressure.
	pressureDivisor = 4
)

// Entry is a cached thumbnail.
type Entry struct {
	Image       image.Image
	Timestamp   float64
	Quality     thumbnail.Quality
	AccessCount int
	LastAccess  time.Time
}

type item struct {
	key   string
	entry Entry
	cost  int64
}

// Cache is a count- and cost-bounded LRU of decoded thumbnails.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	cost       int64
	countLimit int
	costLimit  int64
	now        func() time.Time
}

// Cost estimates the memory held by img: width × height × 4 bytes × 1.2.
func Cost(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(float64(b.Dx()) * float64(b.Dy()) * bytesPerPixel * overheadFactor)
}

// New creates a cache. A non-positive countLimit selects DefaultCountLimit.
// A costLimit of zero disables the cost ceiling; callers normally pass
// memory.DefaultCacheCostLimit().
func New(countLimit int, costLimit int64) *Cache {
	if countLimit <= 0 {
		countLimit = DefaultCountLimit
	}
	c := &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		countLimit: countLimit,
		costLimit:  costLimit,
		now:        time.Now,
	}
	c.publishLimits()
	return c
}

// Store inserts or replaces the entry for key, evicting least recently used
// entries as needed. An image whose cost alone exceeds the cost ceiling is
// not cached.
func (c *Cache) Store(img image.Image, key string, timestamp float64, quality thumbnail.Quality) {
	cost := Cost(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	if c.costLimit > 0 && cost > c.costLimit {
		logging.Debug("Thumbnail %s (%d bytes) exceeds memory cache cost limit, not cached", key, cost)
		c.publish()
		return
	}

	el := c.order.PushFront(&item{
		key: key,
		entry: Entry{
			Image:      img,
			Timestamp:  timestamp,
			Quality:    quality,
			LastAccess: c.now(),
		},
		cost: cost,
	})
	c.items[key] = el
	c.cost += cost

	c.trim()
	c.publish()
}

// Retrieve returns the entry for key and marks it most recently used.
func (c *Cache) Retrieve(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	it := el.Value.(*item)
	it.entry.AccessCount++
	it.entry.LastAccess = c.now()
	c.order.MoveToFront(el)
	return it.entry, true
}

// RemoveItem drops key if present.
func (c *Cache) RemoveItem(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
		c.publish()
	}
}

// RemovePrefix drops every key starting with prefix, such as all
// thumbnails of one fingerprint. It returns the number removed.
func (c *Cache) RemovePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
			removed++
		}
	}
	if removed > 0 {
		c.publish()
	}
	return removed
}

// ClearCache drops every entry.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.cost = 0
	c.publish()
}

// UpdateCacheLimits changes the ceilings. Nil leaves a ceiling unchanged.
// Entries over the new ceilings are evicted immediately.
func (c *Cache) UpdateCacheLimits(countLimit *int, costLimit *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if countLimit != nil && *countLimit > 0 {
		c.countLimit = *countLimit
	}
	if costLimit != nil && *costLimit >= 0 {
		c.costLimit = *costLimit
	}
	c.trim()
	c.publishLimits()
	c.publish()
}

// HandleMemoryPressure divides the count ceiling by four (minimum one) and
// trims to it.
func (c *Cache) HandleMemoryPressure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.items)
	c.countLimit = max(c.countLimit/pressureDivisor, 1)
	c.trim()
	c.publishLimits()
	c.publish()

	logging.Info("Memory pressure: memory cache limited to %d entries (dropped %d)", c.countLimit, before-len(c.items))
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns current usage and ceilings.
func (c *Cache) Stats() (entries int, cost int64, countLimit int, costLimit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), c.cost, c.countLimit, c.costLimit
}

// trim evicts from the back until both ceilings hold. Caller holds mu.
func (c *Cache) trim() {
	for len(c.items) > c.countLimit || (c.costLimit > 0 && c.cost > c.costLimit) {
		el := c.order.Back()
		if el == nil {
			return
		}
		c.removeElement(el)
		metrics.MemoryCacheEvictionsTotal.Inc()
	}
}

func (c *Cache) removeElement(el *list.Element) {
	it := el.Value.(*item)
	c.order.Remove(el)
	delete(c.items, it.key)
	c.cost -= it.cost
}

func (c *Cache) publish() {
	metrics.MemoryCacheEntries.Set(float64(len(c.items)))
	metrics.MemoryCacheCostBytes.Set(float64(c.cost))
}

func (c *Cache) publishLimits() {
	metrics.MemoryCacheCountLimit.Set(float64(c.countLimit))
	metrics.MemoryCacheCostLimit.Set(float64(c.costLimit))
}
