package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"movieview/internal/logging"
	"movieview/internal/workers"
)

// ErrVipsUnavailable is returned by HEIC operations before InitVips has run.
var ErrVipsUnavailable = errors.New("libvips not available")

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level to a handler that forwards
// libvips messages into the logging package, and the libvips verbosity.
func vipsLogSettings(level logging.LogLevel) (vips.LoggingHandlerFunction, vips.LogLevel) {
	forward := func(threshold vips.LogLevel) vips.LoggingHandlerFunction {
		return func(domain string, l vips.LogLevel, msg string) {
			if l > threshold {
				return
			}
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}

	// vips levels are glib levels: lower value is more severe.
	switch level {
	case logging.LevelDebug:
		return forward(vips.LogLevelDebug), vips.LogLevelInfo
	case logging.LevelWarn, logging.LevelError:
		return forward(vips.LogLevelCritical), vips.LogLevelCritical
	default:
		return forward(vips.LogLevelWarning), vips.LogLevelWarning
	}
}

// InitVips starts libvips. Call once at startup; HEIC thumbnails are
// unavailable until it has run.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(vipsLogSettings(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: workers.ForCPU(4),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// encodeHEIC hands img to libvips as lossless PNG and exports HEIF.
func encodeHEIC(img image.Image, quality int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, ErrVipsUnavailable
	}

	var png bytes.Buffer
	if err := imaging.Encode(&png, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("stage image for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(png.Bytes())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	params := vips.NewHeifExportParams()
	params.Quality = quality
	params.Lossless = false

	data, _, err := ref.ExportHeif(params)
	if err != nil {
		return nil, fmt.Errorf("vips heif export failed: %w", err)
	}
	return data, nil
}

// decodeHEIC decodes HEIF data through libvips. The result goes through a
// high-quality JPEG round trip, as govips has no direct image.Image export.
func decodeHEIC(data []byte) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, ErrVipsUnavailable
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load heif: %w", err)
	}
	defer ref.Close()

	jpegBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}
