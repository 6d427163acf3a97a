package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/logging"
	"movieview/internal/media"
	"movieview/internal/metrics"
	"movieview/internal/thumbnail"
)

// FrameExtractor produces one decoded frame of a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, source string, timestampSeconds float64, maxSize thumbnail.Size) (image.Image, error)
}

// FFmpeg extracts frames by piping a single PNG out of ffmpeg.
type FFmpeg struct {
	path   string
	runner Runner
}

// NewFFmpeg creates an extractor using the ffmpeg binary at path ("ffmpeg"
// when empty). A nil runner selects a CommandRunner.
func NewFFmpeg(path string, runner Runner) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &FFmpeg{path: path, runner: runner}
}

// ExtractFrame decodes the frame at timestampSeconds, scaled down to fit
// maxSize when it is non-zero. Seeking at or past the last keyframe can
// make ffmpeg exit cleanly with no output; in that case one retry is made a
// second earlier.
func (f *FFmpeg) ExtractFrame(ctx context.Context, source string, timestampSeconds float64, maxSize thumbnail.Size) (image.Image, error) {
	start := time.Now()
	img, err := f.extract(ctx, source, timestampSeconds, maxSize)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.ExtractionsTotal.WithLabelValues("success").Inc()
	case thumbnail.IsCancellation(err):
		metrics.ExtractionsTotal.WithLabelValues("cancelled").Inc()
	default:
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
	}
	return img, err
}

func (f *FFmpeg) extract(ctx context.Context, source string, timestampSeconds float64, maxSize thumbnail.Size) (image.Image, error) {
	if math.IsNaN(timestampSeconds) || timestampSeconds < 0 {
		timestampSeconds = 0
	}

	out, err := f.run(ctx, source, timestampSeconds, maxSize)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 && timestampSeconds > 0 {
		retryAt := math.Max(timestampSeconds-1, 0)
		logging.Debug("ffmpeg produced no frame at %.3fs for %s, retrying at %.3fs", timestampSeconds, source, retryAt)
		if out, err = f.run(ctx, source, retryAt, maxSize); err != nil {
			return nil, err
		}
	}

	if len(out) == 0 {
		return nil, platformerrors.WithContext(
			platformerrors.Newf(thumbnail.CodeInvalidSource, "no frame at %.3fs", timestampSeconds),
			"path", source,
		)
	}

	img, err := media.DecodeFrame(bytes.NewReader(out))
	if err != nil {
		return nil, platformerrors.Wrap(err, thumbnail.CodeEncodingFailed, "decode extracted frame")
	}
	return img, nil
}

func (f *FFmpeg) run(ctx context.Context, source string, timestampSeconds float64, maxSize thumbnail.Size) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, platformerrors.Wrap(err, thumbnail.CodeCancelled, "frame extraction cancelled")
	}

	out, err := f.runner.Run(ctx, f.path, frameArgs(source, timestampSeconds, maxSize)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, platformerrors.Wrap(ctxErr, thumbnail.CodeCancelled, "frame extraction cancelled")
		}
		return nil, platformerrors.WithContext(
			platformerrors.Wrapf(err, thumbnail.CodeInvalidSource, "extract frame at %.3fs", timestampSeconds),
			"path", source,
		)
	}
	return out, nil
}

// frameArgs builds the ffmpeg command line. -ss before -i seeks on
// keyframes, which is much faster than decoding from the start.
func frameArgs(source string, timestampSeconds float64, maxSize thumbnail.Size) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(timestampSeconds, 'f', 3, 64),
		"-i", source,
		"-frames:v", "1",
	}
	if maxSize.Width > 0 && maxSize.Height > 0 {
		args = append(args, "-vf", scaleFilter(maxSize))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "png", "-")
}

// scaleFilter shrinks to fit maxSize but never enlarges.
func scaleFilter(maxSize thumbnail.Size) string {
	return fmt.Sprintf("scale=w='min(%d,iw)':h='min(%d,ih)':force_original_aspect_ratio=decrease",
		maxSize.Width, maxSize.Height)
}
