package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"movieview/internal/logging"
	"movieview/internal/metrics"
)

// Config holds memory monitoring configuration
type Config struct {
	// LimitBytes is the reference limit (0 = GOMEMLIMIT, then physical memory)
	LimitBytes int64

	// HighWaterMark is the fraction of the limit below which a pressure episode ends (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which subscribers are notified (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to sample heap usage
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory monitoring
func DefaultConfig() Config {
	return Config{
		LimitBytes:        0,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor tracks heap usage and signals memory pressure
type Monitor struct {
	config   Config
	limit    int64
	stopChan chan struct{}
	stopOnce sync.Once

	// readAlloc returns the current heap allocation; swapped in tests.
	readAlloc func() uint64

	mu          sync.RWMutex
	current     uint64
	isPaused    bool
	pauseChan   chan struct{}
	subscribers []func()
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}

	if limit == 0 {
		if physical, err := PhysicalMemory(); err == nil && physical > 0 {
			limit = physical
			logging.Info("Memory monitor using physical memory: %s", FormatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit available, pressure signals disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
		readAlloc: heapAlloc,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Subscribe registers fn to be called when memory becomes critical.
func (m *Monitor) Subscribe(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Start begins monitoring memory usage
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go m.monitorLoop()
}

// Stop stops the memory monitor. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	alloc := m.readAlloc()

	m.mu.Lock()
	m.current = alloc
	notify := false

	if m.limit > 0 {
		usage := float64(alloc) / float64(m.limit)
		metrics.MemoryUsageRatio.Set(usage)

		if usage >= m.config.CriticalWaterMark {
			if !m.isPaused {
				logging.Warn("Memory critical (%.1f%% of limit), shrinking caches", usage*100)
				m.isPaused = true
				notify = true
			}
		} else if usage < m.config.HighWaterMark && m.isPaused {
			logging.Info("Memory recovered (%.1f%% of limit), resuming", usage*100)
			m.isPaused = false
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}
	subs := m.subscribers
	m.mu.Unlock()

	if notify {
		m.notify(subs)
		go runtime.GC()
	}
}

// Signal delivers a pressure notification to all subscribers immediately,
// regardless of sampled usage.
func (m *Monitor) Signal() {
	m.mu.RLock()
	subs := m.subscribers
	m.mu.RUnlock()

	logging.Info("Memory pressure signalled externally")
	m.notify(subs)
}

func (m *Monitor) notify(subs []func()) {
	metrics.MemoryPressureEvents.Inc()
	for _, fn := range subs {
		fn()
	}
}

// WaitIfPaused blocks while memory is critical. Returns false if the monitor
// is stopped while waiting.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	}
}

// IsPaused returns true while a pressure episode is in progress
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns current memory statistics
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var currentInt64 int64
	if m.current > math.MaxInt64 {
		currentInt64 = math.MaxInt64
	} else {
		currentInt64 = int64(m.current)
	}

	var usageRatio float64
	if m.limit > 0 {
		usageRatio = float64(m.current) / float64(m.limit)
	}

	return currentInt64, m.limit, usageRatio
}
