package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/prometheus/procfs"

	"movieview/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of the container limit given to the Go
	// heap. The rest is left for ffmpeg, libvips and goroutine stacks.
	DefaultMemoryRatio = 0.85

	// MaxCacheCostLimit caps the memory cache cost ceiling.
	MaxCacheCostLimit int64 = 4 << 30

	// fallbackCacheCostLimit is used when physical memory cannot be read.
	fallbackCacheCostLimit int64 = 1 << 30
)

// meminfoFunc is swapped in tests.
var meminfoFunc = func() (procfs.Meminfo, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procfs.Meminfo{}, err
	}
	return fs.Meminfo()
}

// PhysicalMemory returns total physical memory in bytes as reported by
// /proc/meminfo.
func PhysicalMemory() (int64, error) {
	info, err := meminfoFunc()
	if err != nil {
		return 0, err
	}
	if info.MemTotal == nil {
		return 0, os.ErrNotExist
	}
	kb := *info.MemTotal
	if kb > math.MaxInt64/1024 {
		return math.MaxInt64, nil
	}
	return int64(kb) * 1024, nil
}

// DefaultCacheCostLimit returns min(25% of physical memory, 4 GiB).
func DefaultCacheCostLimit() int64 {
	total, err := PhysicalMemory()
	if err != nil || total <= 0 {
		logging.Warn("Could not read physical memory (%v), memory cache limited to %s",
			err, FormatBytes(fallbackCacheCostLimit))
		return fallbackCacheCostLimit
	}
	return min(total/4, MaxCacheCostLimit)
}

// LimitResult describes how GOMEMLIMIT was configured.
type LimitResult struct {
	Configured bool

	// Source is "GOMEMLIMIT", "config", or "none".
	Source string

	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ApplyLimit sets GOMEMLIMIT to containerLimit*ratio. An explicit GOMEMLIMIT
// in the environment wins, and a non-positive containerLimit leaves the
// runtime untouched. Ratios outside (0, 1] fall back to DefaultMemoryRatio.
func ApplyLimit(containerLimit int64, ratio float64) LimitResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := LimitResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	if containerLimit <= 0 {
		return LimitResult{Source: "none"}
	}

	if ratio <= 0 || ratio > 1 {
		logging.Warn("Memory ratio %.2f out of range (0.0-1.0], using default %.2f", ratio, DefaultMemoryRatio)
		ratio = DefaultMemoryRatio
	}

	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(goMemLimit), ratio*100, FormatBytes(containerLimit))

	return LimitResult{
		Configured:     true,
		Source:         "config",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// FormatBytes formats bytes into human-readable string
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
