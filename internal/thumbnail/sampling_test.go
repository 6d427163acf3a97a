package thumbnail

import (
	"math"
	"testing"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		density  Density
		max      int
		want     int
	}{
		{"short video gets four", 3, DefaultDensity, DefaultMaxThumbnails, 4},
		{"short video ignores density", 3, DensityXXS, DefaultMaxThumbnails, 4},
		{"one hour at medium density", 3600, DensityM, DefaultMaxThumbnails, 83},
		{"one hour capped by max", 3600, DensityM, 50, 50},
		{"one hour at xxl density hits default cap", 3600, DensityXXL, DefaultMaxThumbnails, 300},
		{"one hour at xxl density uncapped", 3600, DensityXXL, 0, 333},
		{"one hour at xxs density", 3600, DensityXXS, DefaultMaxThumbnails, 27},
		{"five seconds boundary", 5, DensityM, 0, 17},
		{"zero duration", 0, DensityM, DefaultMaxThumbnails, 0},
		{"negative duration", -1, DensityM, DefaultMaxThumbnails, 0},
		{"NaN duration", math.NaN(), DensityM, DefaultMaxThumbnails, 0},
		{"huge density floors at one", 10, Density(1000), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.duration, tt.density, tt.max); got != tt.want {
				t.Errorf("Count(%v, %v, %d) = %d, want %d", tt.duration, tt.density, tt.max, got, tt.want)
			}
		})
	}
}

func TestTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		count    int
		want     []float64
	}{
		{"four over three seconds", 3, 4, []float64{0, 1, 2, 3}},
		{"two samples are the endpoints", 10, 2, []float64{0, 10}},
		{"single sample at start", 10, 1, []float64{0}},
		{"zero count", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timestamps(tt.duration, tt.count)
			if len(got) != len(tt.want) {
				t.Fatalf("Timestamps() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("Timestamps()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTimestampsMonotonic(t *testing.T) {
	ts := Timestamps(3600, Count(3600, DensityM, DefaultMaxThumbnails))
	if len(ts) != 83 {
		t.Fatalf("len = %d, want 83", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			t.Fatalf("timestamps not increasing at %d: %v <= %v", i, ts[i], ts[i-1])
		}
	}
	if ts[len(ts)-1] != 3600 {
		t.Errorf("last timestamp = %v, want 3600", ts[len(ts)-1])
	}
}
