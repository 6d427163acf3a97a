package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
)

func TestQualityTargetSize(t *testing.T) {
	tests := []struct {
		quality Quality
		want    Size
	}{
		{QualityPreview, Size{426, 240}},
		{QualityStandard, Size{854, 480}},
		{QualityHigh, Size{1280, 720}},
		{QualityOriginal, Size{}},
	}
	for _, tt := range tests {
		if got := tt.quality.TargetSize(); got != tt.want {
			t.Errorf("%s.TargetSize() = %+v, want %+v", tt.quality, got, tt.want)
		}
	}
	if !QualityOriginal.TargetSize().IsZero() {
		t.Error("original quality should have an unresolved size")
	}
}

func TestParseQuality(t *testing.T) {
	for _, q := range Qualities {
		got, err := ParseQuality(string(q))
		if err != nil || got != q {
			t.Errorf("ParseQuality(%q) = %q, %v", q, got, err)
		}
	}
	if _, err := ParseQuality("ultra"); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"heic", FormatHEIC, false},
		{"png", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if FormatHEIC.Extension() != "heic" || FormatJPEG.Extension() != "jpeg" {
		t.Error("unexpected extensions")
	}
}

func TestParseDensity(t *testing.T) {
	tests := []struct {
		in      string
		want    Density
		wantErr bool
	}{
		{"xxl", DensityXXL, false},
		{"m", DensityM, false},
		{"xxs", DensityXXS, false},
		{"1.5", DensityS, false},
		{"0.3", 0, true},
		{"huge", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDensity(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDensity(%q) = %v, %v", tt.in, got, err)
		}
	}
	if DensityXS.Name() != "xs" {
		t.Errorf("DensityXS.Name() = %q", DensityXS.Name())
	}
}

func TestParametersComparable(t *testing.T) {
	a := NewParameters(DensityM, QualityHigh, FormatJPEG)
	b := NewParameters(DensityM, QualityHigh, FormatJPEG)
	c := NewParameters(DensityM, QualityHigh, FormatHEIC)

	if a != b {
		t.Error("identical parameters should be equal")
	}
	if a == c {
		t.Error("parameters differing in format should not be equal")
	}
	if a.Size != (Size{1280, 720}) {
		t.Errorf("size = %+v", a.Size)
	}
}

func TestWrapFileError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want platformerrors.ErrorCode
	}{
		{"missing", fmt.Errorf("stat: %w", fs.ErrNotExist), CodeNotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/v.mp4", Err: fs.ErrPermission}, CodeNotAccessible},
		{"other", errors.New("disk on fire"), CodeIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapFileError(tt.err, "read video")
			if got := platformerrors.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error should preserve cause")
			}
		})
	}
	if WrapFileError(nil, "x") != nil {
		t.Error("nil error should stay nil")
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(context.Canceled) {
		t.Error("context.Canceled should be a cancellation")
	}
	if !IsCancellation(fmt.Errorf("ffmpeg: %w", context.DeadlineExceeded)) {
		t.Error("wrapped deadline should be a cancellation")
	}
	if !IsCancellation(platformerrors.New(CodeCancelled, "stopped")) {
		t.Error("CANCELLED code should be a cancellation")
	}
	if IsCancellation(errors.New("decode error")) || IsCancellation(nil) {
		t.Error("unexpected cancellation")
	}
}
