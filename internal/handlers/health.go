package handlers

import (
	"net/http"
	"runtime"
	"time"

	"movieview/internal/media"
	"movieview/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Error   string `json:"error,omitempty"`

	// Cache summary
	DiskBytes     int64 `json:"diskBytes"`
	DiskVideos    int   `json:"diskVideos"`
	MemoryEntries int   `json:"memoryEntries"`
	HEICAvailable bool  `json:"heicAvailable"`

	// Heap usage, present when a memory monitor is running
	Memory *MemoryHealth `json:"memory,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// MemoryHealth is the memory monitor's latest sample.
type MemoryHealth struct {
	HeapBytes  int64   `json:"heapBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Usage      float64 `json:"usage"`
	Pressure   bool    `json:"pressure"`
}

// HealthCheck returns the health status of the service. The service is
// degraded when the disk cache cannot report its size.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        statusHealthy,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		HEICAvailable: media.IsVipsAvailable(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	statusCode := http.StatusOK
	if stats, err := h.orch.DiskStats(r.Context()); err != nil {
		response.Status = statusDegraded
		response.Error = err.Error()
		statusCode = http.StatusServiceUnavailable
	} else {
		response.DiskBytes = stats.TotalBytes
		response.DiskVideos = stats.Videos
	}
	response.MemoryEntries = h.orch.CacheStats().MemoryEntries

	if h.monitor != nil {
		current, limit, usage := h.monitor.GetStats()
		response.Memory = &MemoryHealth{
			HeapBytes:  current,
			LimitBytes: limit,
			Usage:      usage,
			Pressure:   h.monitor.IsPaused(),
		}
	}

	writeJSONStatus(w, statusCode, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
