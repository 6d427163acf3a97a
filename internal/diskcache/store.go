package diskcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/cachekey"
	"movieview/internal/database"
	"movieview/internal/filesystem"
	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/metrics"
	"movieview/internal/thumbnail"
)

const (
	// DefaultMaxBytes is the default disk budget (5 GiB).
	DefaultMaxBytes int64 = 5 << 30

	// DefaultTargetFraction is the share of MaxBytes eviction shrinks to.
	DefaultTargetFraction = 0.8
)

// SizeIndex tracks per-video byte totals. *database.Database implements it.
type SizeIndex interface {
	AddBytes(ctx context.Context, fingerprint string, delta int64, lastAccess time.Time) error
	Delete(ctx context.Context, fingerprint string) error
	Entries(ctx context.Context) ([]database.Entry, error)
	Totals(ctx context.Context) (int64, int, error)
	ReplaceAll(ctx context.Context, entries []database.Entry) error
	IsClean(ctx context.Context) (bool, error)
	SetClean(ctx context.Context, clean bool) error
}

// Config configures a Store.
type Config struct {
	Root           string
	MaxBytes       int64
	TargetFraction float64
}

// Stats summarizes the disk tier.
type Stats struct {
	TotalBytes  int64 `json:"totalBytes"`
	Videos      int   `json:"videos"`
	MaxBytes    int64 `json:"maxBytes"`
	TargetBytes int64 `json:"targetBytes"`
}

// Store is the disk thumbnail cache.
type Store struct {
	mu       sync.Mutex
	root     string
	maxBytes int64
	target   int64
	index    SizeIndex

	// dirty is set when an index update failed; the next budget check
	// rebuilds the index first.
	dirty bool

	now func() time.Time
}

// Open prepares the cache root and its index. An index that was not closed
// cleanly is rebuilt from the directory tree before the budget is enforced.
func Open(ctx context.Context, cfg Config, index SizeIndex) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("diskcache: empty root")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.TargetFraction <= 0 || cfg.TargetFraction > 1 {
		cfg.TargetFraction = DefaultTargetFraction
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, thumbnail.WrapFileError(err, "create cache root")
	}

	s := &Store{
		root:     cfg.Root,
		maxBytes: cfg.MaxBytes,
		target:   int64(float64(cfg.MaxBytes) * cfg.TargetFraction),
		index:    index,
		now:      time.Now,
	}

	clean, err := index.IsClean(ctx)
	if err != nil {
		logging.Warn("Could not read size index state, rebuilding: %v", err)
	}
	if !clean {
		s.mu.Lock()
		err := s.reconcileLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	if err := index.SetClean(ctx, false); err != nil {
		logging.Warn("Could not mark size index in use: %v", err)
	}

	s.Sweep(ctx)
	return s, nil
}

// Close marks the index clean so the next Open can trust it.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		return nil
	}
	return s.index.SetClean(ctx, true)
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) videoDir(fingerprint string) string {
	return filepath.Join(s.root, fingerprint)
}

func thumbnailName(timestampSeconds float64, quality thumbnail.Quality, format thumbnail.Format) string {
	return fmt.Sprintf("%d_%s.%s", cachekey.WholeSeconds(timestampSeconds), quality, format.Extension())
}

// validFingerprint rejects names that would escape the cache root.
func validFingerprint(fp string) bool {
	return fp != "" && fp != "." && fp != ".." && !strings.ContainsAny(fp, `/\`)
}

// Store encodes img in params.Format and writes it with its metadata
// record. Any file of another format for the same key is removed. A budget
// check runs before Store returns; eviction problems are logged, not
// returned.
func (s *Store) Store(ctx context.Context, img image.Image, id cachekey.Identity, timestampSeconds float64, quality thumbnail.Quality, params thumbnail.Parameters) error {
	if !validFingerprint(id.Fingerprint) {
		return platformerrors.Newf(thumbnail.CodeInvalidSource, "invalid fingerprint %q", id.Fingerprint)
	}
	if !params.Format.Valid() {
		params.Format = thumbnail.FormatJPEG
	}

	data, err := media.Encode(img, params.Format)
	if err != nil {
		metrics.DiskCacheWritesTotal.WithLabelValues(string(params.Format), "error").Inc()
		return platformerrors.Wrap(err, thumbnail.CodeEncodingFailed, "encode thumbnail")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(ctx, data, id, timestampSeconds, quality, params); err != nil {
		metrics.DiskCacheWritesTotal.WithLabelValues(string(params.Format), "error").Inc()
		return err
	}
	metrics.DiskCacheWritesTotal.WithLabelValues(string(params.Format), "success").Inc()

	s.enforceBudgetLocked(ctx)
	return nil
}

func (s *Store) writeLocked(ctx context.Context, data []byte, id cachekey.Identity, timestampSeconds float64, quality thumbnail.Quality, params thumbnail.Parameters) error {
	dir := s.videoDir(id.Fingerprint)
	thumbs := filepath.Join(dir, thumbnailsDir)
	name := thumbnailName(timestampSeconds, quality, params.Format)

	var delta int64
	delta -= fileSize(filepath.Join(thumbs, name))

	if err := filesystem.WriteFileAtomic(thumbs, name, data); err != nil {
		return platformerrors.Wrap(err, thumbnail.CodeIO, "write thumbnail")
	}
	delta += int64(len(data))

	for _, other := range thumbnail.Formats {
		if other == params.Format {
			continue
		}
		otherPath := filepath.Join(thumbs, thumbnailName(timestampSeconds, quality, other))
		size := fileSize(otherPath)
		if err := os.Remove(otherPath); err == nil {
			delta -= size
		} else if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to remove %s thumbnail %s: %v", other, otherPath, err)
		}
	}

	m, oldMetaSize, err := readMetadata(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Replacing unreadable metadata for %s: %v", id.Fingerprint, err)
		}
		m = &Metadata{}
	}
	delta -= oldMetaSize

	now := s.now().UTC()
	m.Version = MetadataVersion
	m.VideoHash = id.Fingerprint
	m.ModificationDate = id.ModTime.UTC()
	m.Parameters = params
	m.upsert(Record{
		ID:        cachekey.ThumbnailKey(id.Fingerprint, timestampSeconds, quality),
		Timestamp: timestampSeconds,
		Quality:   quality,
		FilePath:  filepath.ToSlash(filepath.Join(thumbnailsDir, name)),
		FileSize:  int64(len(data)),
		CreatedAt: now,
	})
	m.touch(now)

	metaSize, err := writeMetadata(dir, m)
	if err != nil {
		// The image is in place; the index still has to learn about it.
		s.addBytesLocked(ctx, id.Fingerprint, delta, m.LastAccessDate)
		return platformerrors.Wrap(err, thumbnail.CodeIO, "write thumbnail metadata")
	}
	delta += metaSize

	s.addBytesLocked(ctx, id.Fingerprint, delta, m.LastAccessDate)
	return nil
}

func (s *Store) addBytesLocked(ctx context.Context, fingerprint string, delta int64, lastAccess time.Time) {
	if err := s.index.AddBytes(ctx, fingerprint, delta, lastAccess); err != nil {
		logging.Warn("Size index update failed for %s, scheduling rebuild: %v", fingerprint, err)
		s.dirty = true
	}
}

// Retrieve returns the cached thumbnail for (id, timestamp, quality),
// trying every format. On a hit the video's last access is bumped. Misses,
// including unreadable metadata, return ok=false and no error.
func (s *Store) Retrieve(ctx context.Context, id cachekey.Identity, timestampSeconds float64, quality thumbnail.Quality) (image.Image, bool, error) {
	if !validFingerprint(id.Fingerprint) {
		return nil, false, nil
	}

	data, format, ok := s.read(ctx, id.Fingerprint, timestampSeconds, quality)
	if !ok {
		return nil, false, nil
	}

	img, err := media.Decode(data, format)
	if err != nil {
		logging.Warn("Cached thumbnail %s unreadable, treating as miss: %v",
			cachekey.ThumbnailKey(id.Fingerprint, timestampSeconds, quality), err)
		return nil, false, nil
	}
	return img, true, nil
}

// read finds and reads the encoded thumbnail and bumps last access.
func (s *Store) read(ctx context.Context, fingerprint string, timestampSeconds float64, quality thumbnail.Quality) ([]byte, thumbnail.Format, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.videoDir(fingerprint)
	m, oldMetaSize, err := readMetadata(dir)
	if err != nil {
		return nil, "", false
	}

	formats := thumbnail.Formats
	if m.Parameters.Format == thumbnail.FormatHEIC {
		formats = []thumbnail.Format{thumbnail.FormatHEIC, thumbnail.FormatJPEG}
	}

	for _, format := range formats {
		path := filepath.Join(dir, thumbnailsDir, thumbnailName(timestampSeconds, quality, format))
		data, err := readFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Warn("Failed to read cached thumbnail %s: %v", path, err)
			}
			continue
		}

		m.touch(s.now())
		newMetaSize, err := writeMetadata(dir, m)
		if err != nil {
			logging.Warn("Failed to update last access for %s: %v", fingerprint, err)
		} else {
			s.addBytesLocked(ctx, fingerprint, newMetaSize-oldMetaSize, m.LastAccessDate)
		}
		return data, format, true
	}

	return nil, "", false
}

// Metadata returns the parsed metadata for a video, if readable.
func (s *Store) Metadata(fingerprint string) (*Metadata, bool) {
	if !validFingerprint(fingerprint) {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, _, err := readMetadata(s.videoDir(fingerprint))
	if err != nil {
		return nil, false
	}
	return m, true
}

// RemoveCacheForVideo deletes everything cached for fingerprint. Removing
// an absent video is not an error.
func (s *Store) RemoveCacheForVideo(ctx context.Context, fingerprint string) error {
	if !validFingerprint(fingerprint) {
		return platformerrors.Newf(thumbnail.CodeInvalidSource, "invalid fingerprint %q", fingerprint)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.videoDir(fingerprint)); err != nil {
		return thumbnail.WrapFileError(err, "remove cached video")
	}
	if err := s.index.Delete(ctx, fingerprint); err != nil {
		logging.Warn("Size index delete failed for %s, scheduling rebuild: %v", fingerprint, err)
		s.dirty = true
	}
	logging.Debug("Removed disk cache for %s", fingerprint)
	return nil
}

// ClearAll deletes and recreates the cache root.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.root); err != nil {
		return thumbnail.WrapFileError(err, "clear cache root")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return thumbnail.WrapFileError(err, "recreate cache root")
	}
	if err := s.index.ReplaceAll(ctx, nil); err != nil {
		logging.Warn("Size index reset failed, scheduling rebuild: %v", err)
		s.dirty = true
	}

	metrics.DiskCacheSizeBytes.Set(0)
	metrics.DiskCacheVideos.Set(0)
	logging.Info("Disk cache cleared: %s", s.root)
	return nil
}

// Stats returns the indexed totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, videos, err := s.index.Totals(ctx)
	if err != nil {
		return Stats{}, platformerrors.Wrap(err, thumbnail.CodeIO, "read cache totals")
	}
	return Stats{
		TotalBytes:  total,
		Videos:      videos,
		MaxBytes:    s.maxBytes,
		TargetBytes: s.target,
	}, nil
}
