package diskcache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"movieview/internal/cachekey"
	"movieview/internal/filesystem"
	"movieview/internal/thumbnail"
)

// MetadataVersion is the current metadata.json schema version. Files with
// any other version are treated as unreadable.
const MetadataVersion = 1

const (
	metadataFile  = "metadata.json"
	thumbnailsDir = "thumbnails"
)

// Record is one cached thumbnail.
type Record struct {
	ID        string            `json:"id"`
	Timestamp float64           `json:"timestamp"`
	Quality   thumbnail.Quality `json:"quality"`
	FilePath  string            `json:"filePath"`
	FileSize  int64             `json:"fileSize"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Metadata describes everything cached for one video.
type Metadata struct {
	Version          int                  `json:"version"`
	VideoHash        string               `json:"videoHash"`
	ModificationDate time.Time            `json:"modificationDate"`
	Parameters       thumbnail.Parameters `json:"parameters"`
	Thumbnails       []Record             `json:"thumbnails"`
	LastAccessDate   time.Time            `json:"lastAccessDate"`
}

// upsert adds rec, replacing any record for the same whole-second
// timestamp and quality. Records stay ordered by timestamp, then quality.
func (m *Metadata) upsert(rec Record) {
	sec := cachekey.WholeSeconds(rec.Timestamp)
	m.Thumbnails = slices.DeleteFunc(m.Thumbnails, func(r Record) bool {
		return cachekey.WholeSeconds(r.Timestamp) == sec && r.Quality == rec.Quality
	})
	m.Thumbnails = append(m.Thumbnails, rec)
	slices.SortStableFunc(m.Thumbnails, func(a, b Record) int {
		if sa, sb := cachekey.WholeSeconds(a.Timestamp), cachekey.WholeSeconds(b.Timestamp); sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
		return compareQuality(a.Quality, b.Quality)
	})
}

// touch advances LastAccessDate to now, never moving it backwards.
func (m *Metadata) touch(now time.Time) {
	now = now.UTC()
	if now.After(m.LastAccessDate) {
		m.LastAccessDate = now
	}
}

func compareQuality(a, b thumbnail.Quality) int {
	return slices.Index(thumbnail.Qualities, a) - slices.Index(thumbnail.Qualities, b)
}

// readMetadata loads dir's metadata.json. Unparseable files and version
// mismatches are errors.
func readMetadata(dir string) (*Metadata, int64, error) {
	data, err := readFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, 0, err
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, int64(len(data)), fmt.Errorf("parse metadata: %w", err)
	}
	if m.Version != MetadataVersion {
		return nil, int64(len(data)), fmt.Errorf("metadata version %d, want %d", m.Version, MetadataVersion)
	}
	return &m, int64(len(data)), nil
}

// writeMetadata atomically replaces dir's metadata.json and returns the
// number of bytes written.
func writeMetadata(dir string, m *Metadata) (int64, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	if err := filesystem.WriteFileAtomic(dir, metadataFile, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// lastAccess returns the metadata last access of a video directory, or the
// zero time if the metadata is unreadable.
func lastAccess(dir string) (time.Time, bool) {
	m, _, err := readMetadata(dir)
	if err != nil {
		return time.Time{}, false
	}
	return m.LastAccessDate, true
}

func readFile(path string) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
