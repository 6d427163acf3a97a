package thumbnail

import "fmt"

// Quality is a resolution tier.
type Quality string

const (
	QualityPreview  Quality = "preview"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	QualityOriginal Quality = "original"
)

// Qualities lists every tier from smallest to largest.
var Qualities = []Quality{QualityPreview, QualityStandard, QualityHigh, QualityOriginal}

// Size is a pixel size.
type Size struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// IsZero reports whether the size is unresolved.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// TargetSize returns the bounding box for the tier. Original has no fixed
// size; it resolves to the source resolution when a frame is generated.
func (q Quality) TargetSize() Size {
	switch q {
	case QualityPreview:
		return Size{Width: 426, Height: 240}
	case QualityStandard:
		return Size{Width: 854, Height: 480}
	case QualityHigh:
		return Size{Width: 1280, Height: 720}
	default:
		return Size{}
	}
}

// Valid reports whether q is one of the known tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityPreview, QualityStandard, QualityHigh, QualityOriginal:
		return true
	}
	return false
}

// ParseQuality parses a tier name.
func ParseQuality(s string) (Quality, error) {
	q := Quality(s)
	if !q.Valid() {
		return "", fmt.Errorf("unknown thumbnail quality %q", s)
	}
	return q, nil
}
