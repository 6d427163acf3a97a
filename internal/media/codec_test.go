package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"movieview/internal/thumbnail"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func TestJPEGRoundTrip(t *testing.T) {
	src := testImage(320, 180)

	data, err := Encode(src, thumbnail.FormatJPEG)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("output is not a JPEG")
	}

	img, err := Decode(data, thumbnail.FormatJPEG)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 180 {
		t.Errorf("decoded size = %v, want 320x180", img.Bounds().Size())
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := Encode(nil, thumbnail.FormatJPEG); err == nil {
		t.Error("expected error for nil image")
	}
	if _, err := Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), thumbnail.FormatJPEG); err == nil {
		t.Error("expected error for empty image")
	}
	if _, err := Encode(testImage(4, 4), thumbnail.Format("bmp")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestHEICWithoutVips(t *testing.T) {
	if IsVipsAvailable() {
		t.Skip("libvips initialized in this process")
	}
	if _, err := Encode(testImage(8, 8), thumbnail.FormatHEIC); !errors.Is(err, ErrVipsUnavailable) {
		t.Errorf("Encode(heic) error = %v, want ErrVipsUnavailable", err)
	}
	if _, err := Decode([]byte("ftypheic"), thumbnail.FormatHEIC); !errors.Is(err, ErrVipsUnavailable) {
		t.Errorf("Decode(heic) error = %v, want ErrVipsUnavailable", err)
	}
}

func TestDecodeFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(64, 36)); err != nil {
		t.Fatal(err)
	}

	img, err := DecodeFrame(&buf)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("width = %d, want 64", img.Bounds().Dx())
	}

	if _, err := DecodeFrame(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestFitQuality(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		quality thumbnail.Quality
		wantW   int
		wantH   int
	}{
		{"1080p to standard", 1920, 1080, thumbnail.QualityStandard, 853, 480},
		{"1080p to high", 1920, 1080, thumbnail.QualityHigh, 1280, 720},
		{"1080p to preview", 1920, 1080, thumbnail.QualityPreview, 426, 239},
		{"portrait to preview", 1080, 1920, thumbnail.QualityPreview, 135, 240},
		{"small source unchanged", 320, 180, thumbnail.QualityHigh, 320, 180},
		{"original unchanged", 1920, 1080, thumbnail.QualityOriginal, 1920, 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitQuality(testImage(tt.w, tt.h), tt.quality).Bounds()
			target := tt.quality.TargetSize()
			if !target.IsZero() && (got.Dx() > target.Width || got.Dy() > target.Height) {
				t.Fatalf("result %v exceeds target %+v", got.Size(), target)
			}
			// imaging rounds, the bilinear path truncates; allow a pixel of slack.
			if abs(got.Dx()-tt.wantW) > 1 || abs(got.Dy()-tt.wantH) > 1 {
				t.Errorf("size = %dx%d, want about %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
