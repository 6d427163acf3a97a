package diskcache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"movieview/internal/database"
	"movieview/internal/filesystem"
	"movieview/internal/logging"
	"movieview/internal/metrics"
)

// EvictionReport describes one budget check.
type EvictionReport struct {
	BytesBefore int64    `json:"bytesBefore"`
	BytesAfter  int64    `json:"bytesAfter"`
	Evicted     []string `json:"evicted"`
	Failed      int      `json:"failed"`
}

type candidate struct {
	fingerprint string
	lastAccess  time.Time
	readable    bool
	size        int64
}

// Sweep runs the eviction algorithm now.
func (s *Store) Sweep(ctx context.Context) EvictionReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enforceBudgetLocked(ctx)
}

// Reconcile rebuilds the size index from a full walk of the cache root.
func (s *Store) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(ctx)
}

func (s *Store) enforceBudgetLocked(ctx context.Context) EvictionReport {
	start := time.Now()
	defer func() {
		metrics.DiskCacheSweepDuration.Observe(time.Since(start).Seconds())
	}()

	if s.dirty {
		if err := s.reconcileLocked(ctx); err != nil {
			logging.Warn("Size index rebuild failed: %v", err)
		}
	}

	total, videos, err := s.index.Totals(ctx)
	if err != nil {
		logging.Warn("Could not read cache size, skipping budget check: %v", err)
		return EvictionReport{}
	}

	report := EvictionReport{BytesBefore: total, BytesAfter: total}
	if total <= s.maxBytes {
		metrics.DiskCacheSizeBytes.Set(float64(total))
		metrics.DiskCacheVideos.Set(float64(videos))
		return report
	}

	logging.Info("Disk cache over budget (%d > %d bytes), evicting to %d", total, s.maxBytes, s.target)

	candidates, err := s.candidatesLocked(ctx)
	if err != nil {
		logging.Warn("Could not list cache entries for eviction: %v", err)
		return report
	}

	for _, c := range candidates {
		if total <= s.target {
			break
		}

		if err := os.RemoveAll(s.videoDir(c.fingerprint)); err != nil {
			logging.Warn("Failed to evict %s: %v", c.fingerprint, err)
			metrics.DiskCacheEvictionErrors.Inc()
			report.Failed++
			continue
		}
		if err := s.index.Delete(ctx, c.fingerprint); err != nil {
			logging.Warn("Size index delete failed for %s: %v", c.fingerprint, err)
			s.dirty = true
		}

		reason := "lru"
		if !c.readable {
			reason = "corrupt"
		}
		metrics.DiskCacheEvictionsTotal.WithLabelValues(reason).Inc()
		metrics.DiskCacheEvictionBytes.Add(float64(c.size))

		total -= c.size
		videos--
		report.Evicted = append(report.Evicted, c.fingerprint)
		logging.Debug("Evicted %s (%d bytes, %s, last access %s)", c.fingerprint, c.size, reason, c.lastAccess.Format(time.RFC3339))
	}

	report.BytesAfter = total
	metrics.DiskCacheSizeBytes.Set(float64(total))
	metrics.DiskCacheVideos.Set(float64(videos))

	if total > s.target {
		logging.Warn("Disk cache still above target after eviction: %d > %d bytes", total, s.target)
	} else {
		logging.Info("Evicted %d videos, disk cache now %d bytes", len(report.Evicted), total)
	}
	return report
}

// candidatesLocked lists every video directory, oldest access first.
// Directories with unreadable metadata carry the zero time and sort first.
func (s *Store) candidatesLocked(ctx context.Context) ([]candidate, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]int64, len(dirs))
	if entries, err := s.index.Entries(ctx); err == nil {
		for _, e := range entries {
			sizes[e.Fingerprint] = e.SizeBytes
		}
	} else {
		logging.Warn("Size index unreadable, measuring directories: %v", err)
	}

	candidates := make([]candidate, 0, len(dirs))
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		c := candidate{fingerprint: d.Name()}
		c.lastAccess, c.readable = lastAccess(s.videoDir(c.fingerprint))

		if size, ok := sizes[c.fingerprint]; ok {
			c.size = size
		} else {
			c.size, _ = filesystem.DirSize(s.videoDir(c.fingerprint))
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.lastAccess.Equal(b.lastAccess) {
			return a.lastAccess.Before(b.lastAccess)
		}
		return a.fingerprint < b.fingerprint
	})
	return candidates, nil
}

// reconcileLocked walks the root, removes leftover temp files and replaces
// the index with the measured sizes. Top-level files are ignored.
func (s *Store) reconcileLocked(ctx context.Context) error {
	start := time.Now()

	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	var entries []database.Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(s.root, d.Name())

		removeTempFiles(path)

		size, err := filesystem.DirSize(path)
		if err != nil {
			logging.Warn("Failed to measure %s: %v", path, err)
			continue
		}
		last, _ := lastAccess(path)
		entries = append(entries, database.Entry{
			Fingerprint: d.Name(),
			SizeBytes:   size,
			LastAccess:  last,
		})
	}

	if err := s.index.ReplaceAll(ctx, entries); err != nil {
		return err
	}

	s.dirty = false
	metrics.DiskCacheReconcilesTotal.Inc()
	logging.Info("Rebuilt disk cache size index: %d videos in %v", len(entries), time.Since(start).Round(time.Millisecond))
	return nil
}

// removeTempFiles deletes interrupted atomic writes beneath dir.
func removeTempFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && filesystem.IsTempFile(path) {
			if err := os.Remove(path); err != nil {
				logging.Debug("Failed to remove temp file %s: %v", path, err)
			}
		}
		return nil
	})
}
