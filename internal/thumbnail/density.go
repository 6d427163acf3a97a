package thumbnail

import (
	"fmt"
	"strconv"
)

// Density scales how many thumbnails are sampled for a video. Larger
// values give fewer thumbnails.
type Density float64

const (
	DensityXXL Density = 0.25
	DensityXL  Density = 0.5
	DensityL   Density = 0.75
	DensityM   Density = 1.0
	DensityS   Density = 1.5
	DensityXS  Density = 2.0
	DensityXXS Density = 3.0
)

// DefaultDensity is used when a caller does not choose one.
const DefaultDensity = DensityM

var densityNames = map[string]Density{
	"xxl": DensityXXL,
	"xl":  DensityXL,
	"l":   DensityL,
	"m":   DensityM,
	"s":   DensityS,
	"xs":  DensityXS,
	"xxs": DensityXXS,
}

// ParseDensity accepts a preset name (xxl through xxs) or its numeric factor.
func ParseDensity(s string) (Density, error) {
	if d, ok := densityNames[s]; ok {
		return d, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		for _, d := range densityNames {
			if float64(d) == f {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown density %q (want one of xxl, xl, l, m, s, xs, xxs)", s)
}

// Name returns the preset name, or the numeric factor for unnamed values.
func (d Density) Name() string {
	for name, v := range densityNames {
		if v == d {
			return name
		}
	}
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}
