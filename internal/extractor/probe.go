package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/thumbnail"
)

// VideoInfo is what the cache needs to know about a video.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	FPS      float64 `json:"fps,omitempty"`
}

// Size returns the video's pixel size.
func (v VideoInfo) Size() thumbnail.Size {
	return thumbnail.Size{Width: v.Width, Height: v.Height}
}

// Prober reads video properties.
type Prober interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width,omitempty"`
		Height     int    `json:"height,omitempty"`
		RFrameRate string `json:"r_frame_rate,omitempty"`
		Duration   string `json:"duration,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// FFprobe probes videos with the ffprobe binary.
type FFprobe struct {
	path   string
	runner Runner
}

// NewFFprobe creates a prober using the ffprobe binary at path ("ffprobe"
// when empty). A nil runner selects a CommandRunner.
func NewFFprobe(path string, runner Runner) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &FFprobe{path: path, runner: runner}
}

// Probe returns the duration and first video stream of path. Files without
// a video stream or a positive duration fail with INVALID_SOURCE.
func (p *FFprobe) Probe(ctx context.Context, path string) (VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	output, err := p.runner.Run(ctx, p.path, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return VideoInfo{}, platformerrors.Wrap(ctxErr, thumbnail.CodeCancelled, "probe cancelled")
		}
		return VideoInfo{}, platformerrors.WithContext(
			platformerrors.Wrap(err, thumbnail.CodeInvalidSource, "ffprobe failed"),
			"path", path,
		)
	}

	info, err := parseProbe(output)
	if err != nil {
		return VideoInfo{}, platformerrors.WithContext(
			platformerrors.Wrap(err, thumbnail.CodeInvalidSource, "unusable video"),
			"path", path,
		)
	}
	return info, nil
}

func parseProbe(output []byte) (VideoInfo, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := VideoInfo{}
	if probeData.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	found := false
	for _, stream := range probeData.Streams {
		if stream.CodecType != "video" {
			continue
		}
		found = true
		info.Width = stream.Width
		info.Height = stream.Height
		info.Codec = stream.CodecName
		info.FPS = parseFrameRate(stream.RFrameRate)

		// Some containers only carry the duration on the stream.
		if info.Duration == 0 && stream.Duration != "" {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = d
			}
		}
		break
	}

	if !found {
		return VideoInfo{}, fmt.Errorf("no video stream")
	}
	if !(info.Duration > 0) {
		return VideoInfo{}, fmt.Errorf("no duration")
	}
	return info, nil
}

func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return 0
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
