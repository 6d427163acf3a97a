// Package cachekey derives cache identities for video files.
//
// A video's fingerprint hashes its absolute path and modification time, so
// it survives a cache restart and changes whenever the file is rewritten.
// The file's bytes are never read: a content change that leaves the mtime
// untouched keeps the old fingerprint and serves stale thumbnails.
package cachekey

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"movieview/internal/filesystem"
	"movieview/internal/thumbnail"
)

// FingerprintLength is the length of a fingerprint in hex characters.
const FingerprintLength = 32

// Identity is a video file as seen by the cache.
type Identity struct {
	Path        string
	ModTime     time.Time
	Size        int64
	Fingerprint string
}

// Fingerprint returns the cache fingerprint for path at modTime. Relative
// paths are made absolute first.
func Fingerprint(path string, modTime time.Time) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	h, _ := blake2b.New256(nil)
	h.Write([]byte(path))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(modTime.UnixNano()))
	h.Write(ts[:])

	return hex.EncodeToString(h.Sum(nil))[:FingerprintLength]
}

// ForFile stats path and returns its identity. Missing files fail with
// NOT_FOUND, unreadable ones with FORBIDDEN, directories with INVALID_SOURCE.
func ForFile(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, thumbnail.WrapFileError(err, "resolve video path")
	}

	info, err := filesystem.StatWithRetry(abs, filesystem.DefaultRetryConfig())
	if err != nil {
		return Identity{}, thumbnail.WrapFileError(err, "read video metadata")
	}
	if info.IsDir() {
		return Identity{}, fmt.Errorf("%s is a directory: %w", abs, errNotAFile)
	}

	return Identity{
		Path:        abs,
		ModTime:     info.ModTime(),
		Size:        info.Size(),
		Fingerprint: Fingerprint(abs, info.ModTime()),
	}, nil
}

// ThumbnailKey names one thumbnail in both cache tiers:
// fingerprint_intTimestamp_quality. Timestamps are truncated to whole
// seconds.
func ThumbnailKey(fingerprint string, timestampSeconds float64, quality thumbnail.Quality) string {
	return fmt.Sprintf("%s_%d_%s", fingerprint, WholeSeconds(timestampSeconds), quality)
}

// WholeSeconds truncates a timestamp to the integer used in keys and file names.
func WholeSeconds(timestampSeconds float64) int64 {
	if math.IsNaN(timestampSeconds) || timestampSeconds < 0 {
		return 0
	}
	return int64(timestampSeconds)
}
