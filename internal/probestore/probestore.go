// Package probestore persists ffprobe results in a bbolt database keyed by
// video fingerprint, so a video that has been seen before needs no
// subprocess to be validated again.
package probestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"movieview/internal/cachekey"
	"movieview/internal/extractor"
	"movieview/internal/logging"
	"movieview/internal/metrics"
)

var (
	bucketProbes = []byte("probes")
	bucketPaths  = []byte("paths")
)

type probeRecord struct {
	Info     extractor.VideoInfo `json:"info"`
	ProbedAt time.Time           `json:"probedAt"`
}

// Store is a fingerprint → VideoInfo map backed by bbolt.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the probe database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create probe database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProbes, bucketPaths} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached info for fingerprint.
func (s *Store) Get(fingerprint string) (extractor.VideoInfo, bool) {
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketProbes).Get([]byte(fingerprint)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return extractor.VideoInfo{}, false
	}

	var rec probeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		logging.Debug("Discarding unreadable probe record %s: %v", fingerprint, err)
		return extractor.VideoInfo{}, false
	}
	return rec.Info, true
}

// Put records info for fingerprint.
func (s *Store) Put(fingerprint string, info extractor.VideoInfo) error {
	data, err := json.Marshal(probeRecord{Info: info, ProbedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProbes).Put([]byte(fingerprint), data)
	})
}

// Delete forgets fingerprint.
func (s *Store) Delete(fingerprint string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProbes).Delete([]byte(fingerprint))
	})
}

// Clear forgets every record and path.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProbes, bucketPaths} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remember records that path was last seen with fingerprint. It is a no-op
// when the mapping is already current.
func (s *Store) Remember(path, fingerprint string) error {
	if fp, ok := s.FingerprintForPath(path); ok && fp == fingerprint {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPaths).Put([]byte(path), []byte(fingerprint))
	})
}

// FingerprintForPath returns the fingerprint path had when it was last
// probed.
func (s *Store) FingerprintForPath(path string) (string, bool) {
	var fp string
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketPaths).Get([]byte(path)); v != nil {
			fp = string(v)
		}
		return nil
	})
	return fp, fp != ""
}

// ForgetPath drops the path mapping.
func (s *Store) ForgetPath(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPaths).Delete([]byte(path))
	})
}

// Len returns the number of records.
func (s *Store) Len() int {
	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketProbes).Stats().KeyN
		return nil
	})
	return n
}

// CachingProber answers probes from the Store and falls back to a real
// prober on a miss. Concurrent probes of the same video share one call.
type CachingProber struct {
	store  *Store
	prober extractor.Prober

	mu       sync.Mutex
	inflight map[string]*probeCall
}

type probeCall struct {
	done chan struct{}
	info extractor.VideoInfo
	err  error
}

// NewCachingProber creates a CachingProber. A nil store disables caching.
func NewCachingProber(store *Store, prober extractor.Prober) *CachingProber {
	return &CachingProber{
		store:    store,
		prober:   prober,
		inflight: make(map[string]*probeCall),
	}
}

// Probe implements extractor.Prober.
func (p *CachingProber) Probe(ctx context.Context, path string) (extractor.VideoInfo, error) {
	id, err := cachekey.ForFile(path)
	if err != nil {
		return extractor.VideoInfo{}, err
	}
	return p.ProbeIdentity(ctx, id)
}

// ProbeIdentity probes an already-identified video.
func (p *CachingProber) ProbeIdentity(ctx context.Context, id cachekey.Identity) (extractor.VideoInfo, error) {
	if p.store != nil {
		if info, ok := p.store.Get(id.Fingerprint); ok {
			metrics.ProbesTotal.WithLabelValues("cache").Inc()
			p.remember(id)
			return info, nil
		}
	}

	p.mu.Lock()
	c, ok := p.inflight[id.Fingerprint]
	if !ok {
		c = &probeCall{done: make(chan struct{})}
		p.inflight[id.Fingerprint] = c
		// The probe is shared, so no single caller's cancellation stops it.
		go p.run(context.WithoutCancel(ctx), id, c)
	}
	p.mu.Unlock()

	select {
	case <-c.done:
		return c.info, c.err
	case <-ctx.Done():
		return extractor.VideoInfo{}, ctx.Err()
	}
}

func (p *CachingProber) run(ctx context.Context, id cachekey.Identity, c *probeCall) {
	metrics.ProbesTotal.WithLabelValues("ffprobe").Inc()
	c.info, c.err = p.prober.Probe(ctx, id.Path)
	if c.err == nil && p.store != nil {
		if err := p.store.Put(id.Fingerprint, c.info); err != nil {
			logging.Warn("Failed to cache probe result for %s: %v", id.Path, err)
		}
		p.remember(id)
	}

	p.mu.Lock()
	delete(p.inflight, id.Fingerprint)
	p.mu.Unlock()
	close(c.done)
}

func (p *CachingProber) remember(id cachekey.Identity) {
	if err := p.store.Remember(id.Path, id.Fingerprint); err != nil {
		logging.Debug("Failed to record path for %s: %v", id.Path, err)
	}
}

// Forget drops the cached probe of fingerprint.
func (p *CachingProber) Forget(fingerprint string) {
	if p.store == nil {
		return
	}
	if err := p.store.Delete(fingerprint); err != nil {
		logging.Warn("Failed to drop probe record %s: %v", fingerprint, err)
	}
}

// ForgetAll drops every cached probe.
func (p *CachingProber) ForgetAll() {
	if p.store == nil {
		return
	}
	if err := p.store.Clear(); err != nil {
		logging.Warn("Failed to clear probe records: %v", err)
	}
}
