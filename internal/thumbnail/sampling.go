package thumbnail

import "math"

const (
	samplingBase  = 1.6
	samplingDecay = 10.0

	// Videos shorter than shortVideoSeconds always get shortVideoCount thumbnails.
	shortVideoSeconds = 5.0
	shortVideoCount   = 4

	// DefaultMaxThumbnails caps the count for a single video.
	DefaultMaxThumbnails = 300
)

// Count returns how many thumbnails to sample from a video of the given
// duration: floor((1.6 + 10*ln(duration)) / density), at least 1, with a
// fixed 4 for videos under 5 seconds. maxThumbnails caps the result when
// positive. Non-positive durations yield 0.
func Count(durationSeconds float64, density Density, maxThumbnails int) int {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) {
		return 0
	}

	var n int
	if durationSeconds < shortVideoSeconds {
		n = shortVideoCount
	} else {
		if density <= 0 {
			density = DefaultDensity
		}
		n = int(math.Floor((samplingBase + samplingDecay*math.Log(durationSeconds)) / float64(density)))
		n = max(n, 1)
	}

	if maxThumbnails > 0 {
		n = min(n, maxThumbnails)
	}
	return n
}

// Timestamps spaces count samples evenly over [0, duration], including both
// endpoints when count > 1. A single sample is taken at 0.
func Timestamps(durationSeconds float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	if count == 1 {
		return []float64{0}
	}

	step := durationSeconds / float64(count-1)
	out := make([]float64, count)
	for i := range out {
		out[i] = step * float64(i)
	}
	out[count-1] = durationSeconds
	return out
}
