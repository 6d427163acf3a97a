package workers

import (
	"runtime"
	"sync/atomic"
)

var override atomic.Int64

// SetOverride fixes the worker count returned by Count. Zero or a negative
// value restores the computed default.
func SetOverride(n int) {
	if n < 0 {
		n = 0
	}
	override.Store(int64(n))
}

// Count returns the worker count for a task type. multiplier scales
// GOMAXPROCS (1.0 for CPU-bound, 2.0 for I/O-bound work). limit caps the
// result; 0 means no cap.
func Count(multiplier float64, limit int) int {
	if n := int(override.Load()); n > 0 {
		if limit > 0 && n > limit {
			return limit
		}
		return n
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
