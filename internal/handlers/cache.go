package handlers

import (
	"net/http"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/memory"
)

// CacheStatsResponse summarizes both cache tiers.
type CacheStatsResponse struct {
	Disk struct {
		TotalBytes  int64  `json:"totalBytes"`
		Total       string `json:"total"`
		Videos      int    `json:"videos"`
		MaxBytes    int64  `json:"maxBytes"`
		TargetBytes int64  `json:"targetBytes"`
	} `json:"disk"`
	Memory struct {
		Entries    int    `json:"entries"`
		CostBytes  int64  `json:"costBytes"`
		Cost       string `json:"cost"`
		CountLimit int    `json:"countLimit"`
		CostLimit  int64  `json:"costLimit"`
	} `json:"memory"`
}

// RemoveVideoCache drops every cached thumbnail of one video, addressed by
// media path or by fingerprint.
//
//	DELETE /api/cache?path=<relative>
//	DELETE /api/cache?fingerprint=<hex>
func (h *Handlers) RemoveVideoCache(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if fp := query.Get("fingerprint"); fp != "" {
		if err := h.orch.RemoveFingerprint(r.Context(), fp); err != nil {
			writeError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "removed", "fingerprint": fp})
		return
	}

	fullPath, err := h.resolvePath(query.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.orch.RemoveCacheForVideo(r.Context(), fullPath); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ClearCache empties both tiers.
//
//	DELETE /api/cache/all
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.ClearAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetCacheStats reports the size of both tiers.
//
//	GET /api/cache/stats
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	disk, err := h.orch.DiskStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	mem := h.orch.CacheStats()

	var resp CacheStatsResponse
	resp.Disk.TotalBytes = disk.TotalBytes
	resp.Disk.Total = memory.FormatBytes(disk.TotalBytes)
	resp.Disk.Videos = disk.Videos
	resp.Disk.MaxBytes = disk.MaxBytes
	resp.Disk.TargetBytes = disk.TargetBytes
	resp.Memory.Entries = mem.MemoryEntries
	resp.Memory.CostBytes = mem.MemoryCost
	resp.Memory.Cost = memory.FormatBytes(mem.MemoryCost)
	resp.Memory.CountLimit = mem.MemoryCountLimit
	resp.Memory.CostLimit = mem.MemoryCostLimit

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, resp)
}

// SweepCache runs one eviction pass immediately.
//
//	POST /api/cache/sweep
func (h *Handlers) SweepCache(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidInput, "disk sweeping is not available"))
		return
	}
	writeJSONStatus(w, http.StatusOK, h.sweeper.Sweep(r.Context()))
}

// SimulateMemoryPressure raises a memory pressure notification, which
// shrinks the memory cache the same way real pressure does.
//
//	POST /api/memory-pressure
func (h *Handlers) SimulateMemoryPressure(w http.ResponseWriter, _ *http.Request) {
	if h.monitor == nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidInput, "memory monitor is not running"))
		return
	}
	h.monitor.Signal()
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "signalled"})
}
