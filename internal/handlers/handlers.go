package handlers

import (
	"context"
	"time"

	"movieview/internal/diskcache"
	"movieview/internal/thumbnail"
	"movieview/internal/thumbnails"
)

// Sweeper runs one disk cache eviction pass.
type Sweeper interface {
	Sweep(ctx context.Context) diskcache.EvictionReport
}

// MemoryMonitor reports heap usage and raises memory pressure
// notifications. *memory.Monitor implements it.
type MemoryMonitor interface {
	Signal()
	IsPaused() bool
	GetStats() (current, limit int64, usage float64)
}

// Config holds what the handlers need from the application configuration.
type Config struct {
	MediaDir      string
	Parameters    thumbnail.Parameters
	MaxThumbnails int
}

type Handlers struct {
	orch          *thumbnails.Orchestrator
	sweeper       Sweeper
	monitor       MemoryMonitor
	mediaDir      string
	params        thumbnail.Parameters
	maxThumbnails int
	startTime     time.Time
}

// New creates the handler set. sweeper and monitor may be nil, which
// disables the corresponding endpoints.
func New(orch *thumbnails.Orchestrator, sweeper Sweeper, monitor MemoryMonitor, cfg Config) *Handlers {
	params := cfg.Parameters
	if params == (thumbnail.Parameters{}) {
		params = thumbnail.DefaultParameters()
	}
	return &Handlers{
		orch:          orch,
		sweeper:       sweeper,
		monitor:       monitor,
		mediaDir:      cfg.MediaDir,
		params:        params,
		maxThumbnails: cfg.MaxThumbnails,
		startTime:     time.Now(),
	}
}
