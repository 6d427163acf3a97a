package media

import (
	"bytes"
	"fmt"
	"image"
	"io"

	// Frame decoders for extractor output
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP frame support

	"movieview/internal/thumbnail"
)

// LossyQuality is the fixed encoder quality for cached thumbnails.
const LossyQuality = 80

// Encode encodes img in the given cache format at LossyQuality.
func Encode(img image.Image, format thumbnail.Format) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode %s: nil image", format)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("encode %s: empty image", format)
	}

	switch format {
	case thumbnail.FormatJPEG:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(LossyQuality)); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	case thumbnail.FormatHEIC:
		return encodeHEIC(img, LossyQuality)
	default:
		return nil, fmt.Errorf("unsupported cache format %q", format)
	}
}

// Decode decodes cached thumbnail data of the given format.
func Decode(data []byte, format thumbnail.Format) (image.Image, error) {
	switch format {
	case thumbnail.FormatJPEG:
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return img, nil
	case thumbnail.FormatHEIC:
		return decodeHEIC(data)
	default:
		return nil, fmt.Errorf("unsupported cache format %q", format)
	}
}

// DecodeFrame decodes a single frame written by the extractor (PNG, JPEG
// or WebP).
func DecodeFrame(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// FitQuality scales img down to fit the quality's target size, keeping the
// aspect ratio. Images already inside the box and the original tier are
// returned unchanged. The preview tier uses a cheaper bilinear scaler since
// it is regenerated often and shown small.
func FitQuality(img image.Image, quality thumbnail.Quality) image.Image {
	target := quality.TargetSize()
	if target.IsZero() {
		return img
	}

	b := img.Bounds()
	if b.Dx() <= target.Width && b.Dy() <= target.Height {
		return img
	}

	if quality == thumbnail.QualityPreview {
		w, h := fitBox(b.Dx(), b.Dy(), target.Width, target.Height)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	return imaging.Fit(img, target.Width, target.Height, imaging.Lanczos)
}

// fitBox returns the largest size with the aspect ratio of w×h that fits in
// maxW×maxH. Neither side drops below one pixel.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
