package cachekey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/thumbnail"
)

func TestFingerprintStable(t *testing.T) {
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := Fingerprint("/videos/holiday.mp4", mtime)
	b := Fingerprint("/videos/holiday.mp4", mtime)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != FingerprintLength {
		t.Errorf("len = %d, want %d", len(a), FingerprintLength)
	}
	if strings.Trim(a, "0123456789abcdef") != "" {
		t.Errorf("fingerprint %q is not lowercase hex", a)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Fingerprint("/videos/holiday.mp4", mtime)

	tests := []struct {
		name    string
		path    string
		modTime time.Time
	}{
		{"mtime changed by one nanosecond", "/videos/holiday.mp4", mtime.Add(time.Nanosecond)},
		{"file moved", "/archive/holiday.mp4", mtime},
		{"file renamed", "/videos/holiday2.mp4", mtime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.path, tt.modTime) == base {
				t.Error("expected a different fingerprint")
			}
		})
	}
}

func TestFingerprintRelativePath(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	abs, err := filepath.Abs("clip.mov")
	if err != nil {
		t.Fatal(err)
	}
	if Fingerprint("clip.mov", mtime) != Fingerprint(abs, mtime) {
		t.Error("relative and absolute path should agree")
	}
}

func TestForFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 7, 4, 9, 30, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	id, err := ForFile(path)
	if err != nil {
		t.Fatalf("ForFile() error = %v", err)
	}
	if id.Path != path {
		t.Errorf("Path = %q, want %q", id.Path, path)
	}
	if !id.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", id.ModTime, mtime)
	}
	if id.Fingerprint != Fingerprint(path, mtime) {
		t.Error("fingerprint does not match Fingerprint(path, mtime)")
	}

	later := mtime.Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	id2, err := ForFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if id2.Fingerprint == id.Fingerprint {
		t.Error("touching the file should change the fingerprint")
	}
}

func TestForFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ForFile(filepath.Join(dir, "missing.mp4"))
	if code := platformerrors.GetCode(err); code != thumbnail.CodeNotFound {
		t.Errorf("missing file code = %s, want %s", code, thumbnail.CodeNotFound)
	}

	_, err = ForFile(dir)
	if code := platformerrors.GetCode(err); code != thumbnail.CodeInvalidSource {
		t.Errorf("directory code = %s, want %s", code, thumbnail.CodeInvalidSource)
	}
}

func TestThumbnailKey(t *testing.T) {
	tests := []struct {
		timestamp float64
		quality   thumbnail.Quality
		want      string
	}{
		{0, thumbnail.QualityPreview, "abc_0_preview"},
		{10, thumbnail.QualityStandard, "abc_10_standard"},
		{10.9, thumbnail.QualityStandard, "abc_10_standard"},
		{3599.99, thumbnail.QualityHigh, "abc_3599_high"},
		{-2, thumbnail.QualityOriginal, "abc_0_original"},
	}
	for _, tt := range tests {
		if got := ThumbnailKey("abc", tt.timestamp, tt.quality); got != tt.want {
			t.Errorf("ThumbnailKey(abc, %v, %s) = %q, want %q", tt.timestamp, tt.quality, got, tt.want)
		}
	}
}
