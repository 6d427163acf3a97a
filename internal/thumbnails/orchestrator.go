package thumbnails

import (
	"context"
	"image"
	"sync"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/cachekey"
	"movieview/internal/diskcache"
	"movieview/internal/extractor"
	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/memcache"
	"movieview/internal/metrics"
	"movieview/internal/thumbnail"
)

// DiskCache is the persistent tier. *diskcache.Store implements it.
type DiskCache interface {
	Store(ctx context.Context, img image.Image, id cachekey.Identity, timestampSeconds float64, quality thumbnail.Quality, params thumbnail.Parameters) error
	Retrieve(ctx context.Context, id cachekey.Identity, timestampSeconds float64, quality thumbnail.Quality) (image.Image, bool, error)
	RemoveCacheForVideo(ctx context.Context, fingerprint string) error
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (diskcache.Stats, error)
}

// Prober reads properties of an identified video.
// *probestore.CachingProber implements it.
type Prober interface {
	ProbeIdentity(ctx context.Context, id cachekey.Identity) (extractor.VideoInfo, error)
}

// Forgetter is implemented by probers that cache results.
type Forgetter interface {
	Forget(fingerprint string)
	ForgetAll()
}

// Source says which tier served a thumbnail.
type Source string

const (
	SourceMemory    Source = "memory"
	SourceDisk      Source = "disk"
	SourceExtracted Source = "extracted"
)

// Config configures an Orchestrator.
type Config struct {
	// MaxThumbnails caps a session's thumbnail count. Zero selects
	// thumbnail.DefaultMaxThumbnails; negative means no cap.
	MaxThumbnails int

	// HEICAvailable reports whether HEIC can be encoded. Nil selects
	// media.IsVipsAvailable.
	HEICAvailable func() bool
}

// Orchestrator coordinates the memory cache, the disk cache, the prober and
// the frame extractor.
type Orchestrator struct {
	memory    *memcache.Cache
	disk      DiskCache
	extractor extractor.FrameExtractor
	prober    Prober

	maxThumbnails int
	heicAvailable func() bool

	mu     sync.Mutex
	active map[string]*Session
}

// New creates an Orchestrator from its injected tiers.
func New(memory *memcache.Cache, disk DiskCache, frames extractor.FrameExtractor, prober Prober, cfg Config) *Orchestrator {
	maxThumbnails := cfg.MaxThumbnails
	switch {
	case maxThumbnails == 0:
		maxThumbnails = thumbnail.DefaultMaxThumbnails
	case maxThumbnails < 0:
		maxThumbnails = 0
	}

	heicAvailable := cfg.HEICAvailable
	if heicAvailable == nil {
		heicAvailable = media.IsVipsAvailable
	}

	return &Orchestrator{
		memory:        memory,
		disk:          disk,
		extractor:     frames,
		prober:        prober,
		maxThumbnails: maxThumbnails,
		heicAvailable: heicAvailable,
		active:        make(map[string]*Session),
	}
}

// Thumbnail resolves a single thumbnail of the video at path.
func (o *Orchestrator) Thumbnail(ctx context.Context, path string, timestampSeconds float64, params thumbnail.Parameters) (image.Image, Source, error) {
	id, err := cachekey.ForFile(path)
	if err != nil {
		return nil, "", err
	}
	params = o.normalize(params)

	maxSize := params.Quality.TargetSize()
	if params.Quality == thumbnail.QualityOriginal && o.prober != nil {
		info, err := o.prober.ProbeIdentity(ctx, id)
		if err != nil {
			return nil, "", err
		}
		maxSize = info.Size()
	}
	params.Size = maxSize

	return o.fetch(ctx, id, timestampSeconds, params, maxSize)
}

// fetch walks memory, disk and the extractor for one thumbnail.
func (o *Orchestrator) fetch(ctx context.Context, id cachekey.Identity, timestampSeconds float64, params thumbnail.Parameters, maxSize thumbnail.Size) (image.Image, Source, error) {
	key := cachekey.ThumbnailKey(id.Fingerprint, timestampSeconds, params.Quality)

	if entry, ok := o.memory.Retrieve(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
		return entry.Image, SourceMemory, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()

	img, ok, err := o.disk.Retrieve(ctx, id, timestampSeconds, params.Quality)
	if err != nil {
		logging.Warn("Disk cache lookup failed for %s, regenerating: %v", key, err)
	}
	if ok {
		metrics.CacheLookupsTotal.WithLabelValues("disk", "hit").Inc()
		o.memory.Store(img, key, timestampSeconds, params.Quality)
		return img, SourceDisk, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("disk", "miss").Inc()

	frame, err := o.extractor.ExtractFrame(ctx, id.Path, timestampSeconds, maxSize)
	if err != nil {
		return nil, "", err
	}
	frame = media.FitQuality(frame, params.Quality)

	if err := o.disk.Store(ctx, frame, id, timestampSeconds, params.Quality, params); err != nil {
		logging.Warn("Failed to persist thumbnail %s: %v", key, err)
	}
	o.memory.Store(frame, key, timestampSeconds, params.Quality)
	return frame, SourceExtracted, nil
}

// RemoveCacheForVideo drops everything cached for the video at path from
// both tiers and forgets its probe.
func (o *Orchestrator) RemoveCacheForVideo(ctx context.Context, path string) error {
	id, err := cachekey.ForFile(path)
	if err != nil {
		return err
	}
	return o.RemoveFingerprint(ctx, id.Fingerprint)
}

// RemoveFingerprint is RemoveCacheForVideo for a known fingerprint, for
// videos that no longer exist on disk.
func (o *Orchestrator) RemoveFingerprint(ctx context.Context, fingerprint string) error {
	removed := o.memory.RemovePrefix(fingerprint + "_")
	if f, ok := o.prober.(Forgetter); ok {
		f.Forget(fingerprint)
	}
	if err := o.disk.RemoveCacheForVideo(ctx, fingerprint); err != nil {
		return err
	}
	logging.Info("Purged cache for %s (%d memory entries)", fingerprint, removed)
	return nil
}

// ClearAll empties both tiers.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	o.memory.ClearCache()
	if f, ok := o.prober.(Forgetter); ok {
		f.ForgetAll()
	}
	return o.disk.ClearAll(ctx)
}

// CacheStats implements metrics.StatsProvider.
func (o *Orchestrator) CacheStats() metrics.Stats {
	entries, cost, countLimit, costLimit := o.memory.Stats()
	stats := metrics.Stats{
		MemoryEntries:    entries,
		MemoryCost:       cost,
		MemoryCountLimit: countLimit,
		MemoryCostLimit:  costLimit,
	}

	disk, err := o.disk.Stats(context.Background())
	if err != nil {
		logging.Warn("Failed to read disk cache stats: %v", err)
		return stats
	}
	stats.DiskBytes = disk.TotalBytes
	stats.DiskVideos = disk.Videos
	return stats
}

// DiskStats returns the disk tier's totals.
func (o *Orchestrator) DiskStats(ctx context.Context) (diskcache.Stats, error) {
	return o.disk.Stats(ctx)
}

// acquire registers s as the only running session for its video.
func (o *Orchestrator) acquire(s *Session) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.active[s.fingerprint]; busy {
		return platformerrors.WithContext(
			platformerrors.New(thumbnail.CodeOperationInProgress, "thumbnails for this video are already being generated"),
			"path", s.path,
		)
	}
	o.active[s.fingerprint] = s
	return nil
}

func (o *Orchestrator) release(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active[s.fingerprint] == s {
		delete(o.active, s.fingerprint)
	}
}

// CancelSession cancels the running session for fingerprint, if any. A
// session that has already finished is not cancelled.
func (o *Orchestrator) CancelSession(fingerprint string) bool {
	o.mu.Lock()
	s, ok := o.active[fingerprint]
	o.mu.Unlock()

	if !ok || s.State().Terminal() {
		return false
	}
	s.Cancel()
	return true
}

// normalize fills unset parameters with defaults. HEIC becomes JPEG while
// libvips is unavailable.
func (o *Orchestrator) normalize(params thumbnail.Parameters) thumbnail.Parameters {
	def := thumbnail.DefaultParameters()
	if !(params.Density > 0) {
		params.Density = def.Density
	}
	if !params.Quality.Valid() {
		params.Quality = def.Quality
	}
	if !params.Format.Valid() {
		params.Format = def.Format
	}
	if params.Format == thumbnail.FormatHEIC && !o.heicAvailable() {
		params.Format = thumbnail.FormatJPEG
	}
	return params
}

// Compile-time interface check.
var _ metrics.StatsProvider = (*Orchestrator)(nil)
