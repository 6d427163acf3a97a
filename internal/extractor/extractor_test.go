package extractor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/thumbnail"
)

type call struct {
	name string
	args []string
}

// fakeRunner replays outputs in order and records every invocation.
type fakeRunner struct {
	outputs [][]byte
	errs    []error
	calls   []call
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	i := len(f.calls)
	f.calls = append(f.calls, call{name: name, args: args})
	var out []byte
	var err error
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func pngFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestExtractFrame(t *testing.T) {
	runner := &fakeRunner{outputs: [][]byte{pngFrame(t, 64, 36)}}
	ff := NewFFmpeg("/usr/bin/ffmpeg", runner)

	img, err := ff.ExtractFrame(context.Background(), "/videos/a.mp4", 12.5, thumbnail.Size{Width: 426, Height: 240})
	if err != nil {
		t.Fatalf("ExtractFrame() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Errorf("frame size = %dx%d", b.Dx(), b.Dy())
	}

	if len(runner.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.calls))
	}
	c := runner.calls[0]
	if c.name != "/usr/bin/ffmpeg" {
		t.Errorf("binary = %q", c.name)
	}
	if got := argValue(c.args, "-ss"); got != "12.500" {
		t.Errorf("-ss = %q, want 12.500", got)
	}
	if got := argValue(c.args, "-i"); got != "/videos/a.mp4" {
		t.Errorf("-i = %q", got)
	}
	if got := argValue(c.args, "-vf"); !strings.Contains(got, "min(426,iw)") || !strings.Contains(got, "min(240,ih)") {
		t.Errorf("-vf = %q", got)
	}
	if c.args[len(c.args)-1] != "-" {
		t.Error("output should be piped to stdout")
	}
}

func TestExtractFrameNoScaleForZeroSize(t *testing.T) {
	runner := &fakeRunner{outputs: [][]byte{pngFrame(t, 8, 8)}}
	ff := NewFFmpeg("", runner)

	if _, err := ff.ExtractFrame(context.Background(), "a.mp4", 0, thumbnail.Size{}); err != nil {
		t.Fatal(err)
	}
	if runner.calls[0].name != "ffmpeg" {
		t.Errorf("default binary = %q", runner.calls[0].name)
	}
	if got := argValue(runner.calls[0].args, "-vf"); got != "" {
		t.Errorf("unexpected scale filter %q", got)
	}
}

func TestExtractFrameRetriesEarlierOnEmptyOutput(t *testing.T) {
	runner := &fakeRunner{outputs: [][]byte{nil, pngFrame(t, 8, 8)}}
	ff := NewFFmpeg("", runner)

	if _, err := ff.ExtractFrame(context.Background(), "a.mp4", 60, thumbnail.Size{}); err != nil {
		t.Fatalf("ExtractFrame() error = %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("runner called %d times, want 2", len(runner.calls))
	}
	if got := argValue(runner.calls[1].args, "-ss"); got != "59.000" {
		t.Errorf("retry -ss = %q, want 59.000", got)
	}
}

func TestExtractFrameErrors(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		timestamp float64
		want      platformerrors.ErrorCode
		calls     int
	}{
		{
			name:      "ffmpeg failure",
			runner:    &fakeRunner{errs: []error{errors.New("exit status 1: no such track")}},
			timestamp: 5,
			want:      thumbnail.CodeInvalidSource,
			calls:     1,
		},
		{
			name:      "empty output at zero",
			runner:    &fakeRunner{outputs: [][]byte{nil}},
			timestamp: 0,
			want:      thumbnail.CodeInvalidSource,
			calls:     1,
		},
		{
			name:      "empty output after retry",
			runner:    &fakeRunner{outputs: [][]byte{nil, nil}},
			timestamp: 3,
			want:      thumbnail.CodeInvalidSource,
			calls:     2,
		},
		{
			name:      "undecodable output",
			runner:    &fakeRunner{outputs: [][]byte{[]byte("garbage")}},
			timestamp: 1,
			want:      thumbnail.CodeEncodingFailed,
			calls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ff := NewFFmpeg("", tt.runner)
			_, err := ff.ExtractFrame(context.Background(), "a.mp4", tt.timestamp, thumbnail.Size{})
			if code := platformerrors.GetCode(err); code != tt.want {
				t.Errorf("code = %s, want %s (err %v)", code, tt.want, err)
			}
			if len(tt.runner.calls) != tt.calls {
				t.Errorf("runner called %d times, want %d", len(tt.runner.calls), tt.calls)
			}
		})
	}
}

func TestExtractFrameCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	_, err := NewFFmpeg("", runner).ExtractFrame(ctx, "a.mp4", 1, thumbnail.Size{})
	if !thumbnail.IsCancellation(err) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Error("ffmpeg should not run with a cancelled context")
	}
}

const probeJSON = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac"},
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"}
  ],
  "format": {"duration": "3600.250000"}
}`

func TestProbe(t *testing.T) {
	runner := &fakeRunner{outputs: [][]byte{[]byte(probeJSON)}}
	info, err := NewFFprobe("", runner).Probe(context.Background(), "/videos/a.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if info.Duration != 3600.25 || info.Width != 1920 || info.Height != 1080 || info.Codec != "h264" {
		t.Errorf("info = %+v", info)
	}
	if info.FPS < 29.97 || info.FPS > 29.98 {
		t.Errorf("FPS = %v", info.FPS)
	}
	if info.Size() != (thumbnail.Size{Width: 1920, Height: 1080}) {
		t.Errorf("Size() = %+v", info.Size())
	}
	if runner.calls[0].name != "ffprobe" || runner.calls[0].args[len(runner.calls[0].args)-1] != "/videos/a.mp4" {
		t.Errorf("call = %+v", runner.calls[0])
	}
}

func TestProbeStreamDurationFallback(t *testing.T) {
	out := `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360,"duration":"12.5"}],"format":{}}`
	info, err := NewFFprobe("", &fakeRunner{outputs: [][]byte{[]byte(out)}}).Probe(context.Background(), "a.webm")
	if err != nil {
		t.Fatal(err)
	}
	if info.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", info.Duration)
	}
}

func TestProbeErrors(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"ffprobe failure", &fakeRunner{errs: []error{errors.New("exit status 1")}}},
		{"bad json", &fakeRunner{outputs: [][]byte{[]byte("{")}}},
		{"audio only", &fakeRunner{outputs: [][]byte{[]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"10"}}`)}}},
		{"zero duration", &fakeRunner{outputs: [][]byte{[]byte(`{"streams":[{"codec_type":"video","width":1,"height":1}],"format":{"duration":"0"}}`)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFFprobe("", tt.runner).Probe(context.Background(), "a.mp4")
			if code := platformerrors.GetCode(err); code != thumbnail.CodeInvalidSource {
				t.Errorf("code = %s, want %s (err %v)", code, thumbnail.CodeInvalidSource, err)
			}
		})
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
