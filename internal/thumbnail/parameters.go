package thumbnail

// Parameters describes how a video's thumbnails were rendered. Values are
// comparable with ==.
type Parameters struct {
	Density Density `json:"density"`
	Quality Quality `json:"quality"`
	Size    Size    `json:"size"`
	Format  Format  `json:"format"`
}

// NewParameters builds a parameter set with the quality's target size.
func NewParameters(density Density, quality Quality, format Format) Parameters {
	return Parameters{
		Density: density,
		Quality: quality,
		Size:    quality.TargetSize(),
		Format:  format,
	}
}

// DefaultParameters returns medium density, standard quality JPEG.
func DefaultParameters() Parameters {
	return NewParameters(DefaultDensity, QualityStandard, FormatJPEG)
}
