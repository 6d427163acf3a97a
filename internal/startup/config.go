package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"movieview/internal/diskcache"
	"movieview/internal/logging"
	"movieview/internal/memcache"
	"movieview/internal/memory"
	"movieview/internal/thumbnail"
)

// EnvPrefix prefixes every environment override, e.g. MOVIEVIEW_PORT or
// MOVIEVIEW_DISK_MAX_BYTES.
const EnvPrefix = "MOVIEVIEW"

// appDirName is the directory created under the caches dir.
const appDirName = "MovieView"

// Config holds all application configuration
type Config struct {
	MediaDir        string `mapstructure:"media_dir"`
	CachesDir       string `mapstructure:"caches_dir"`
	Port            string `mapstructure:"port"`
	MetricsPort     string `mapstructure:"metrics_port"`
	MetricsEnabled  bool   `mapstructure:"metrics_enabled"`
	LogLevel        string `mapstructure:"log_level"`
	LogHealthChecks bool   `mapstructure:"log_health_checks"`
	FFmpegPath      string `mapstructure:"ffmpeg_path"`
	FFprobePath     string `mapstructure:"ffprobe_path"`

	Disk       DiskConfig      `mapstructure:"disk"`
	Memory     MemoryConfig    `mapstructure:"memory"`
	Thumbnails ThumbnailConfig `mapstructure:"thumbnails"`

	// Derived paths
	ThumbnailDir string `mapstructure:"-"`
	IndexPath    string `mapstructure:"-"`
	ProbePath    string `mapstructure:"-"`

	// Parsed thumbnail defaults
	Parameters thumbnail.Parameters `mapstructure:"-"`
}

// DiskConfig configures the disk tier.
type DiskConfig struct {
	MaxBytes       int64         `mapstructure:"max_bytes"`
	TargetFraction float64       `mapstructure:"target_fraction"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// MemoryConfig configures the memory tier and the process memory limit.
type MemoryConfig struct {
	CountLimit int   `mapstructure:"count_limit"`
	CostLimit  int64 `mapstructure:"cost_limit"`

	// Limit is the container memory limit in bytes (0 = not set).
	Limit         int64         `mapstructure:"limit"`
	Ratio         float64       `mapstructure:"ratio"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// ThumbnailConfig holds thumbnail generation defaults.
type ThumbnailConfig struct {
	MaxThumbnails int    `mapstructure:"max_thumbnails"`
	Density       string `mapstructure:"density"`
	Quality       string `mapstructure:"quality"`
	Format        string `mapstructure:"format"`
	WarmWorkers   int    `mapstructure:"warm_workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("media_dir", "/media")
	v.SetDefault("caches_dir", defaultCachesDir())
	v.SetDefault("port", "8080")
	v.SetDefault("metrics_port", "9090")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "")
	v.SetDefault("log_health_checks", true)
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffprobe_path", "ffprobe")

	v.SetDefault("disk.max_bytes", diskcache.DefaultMaxBytes)
	v.SetDefault("disk.target_fraction", diskcache.DefaultTargetFraction)
	v.SetDefault("disk.sweep_interval", "10m")

	v.SetDefault("memory.count_limit", memcache.DefaultCountLimit)
	v.SetDefault("memory.cost_limit", 0)
	v.SetDefault("memory.limit", 0)
	v.SetDefault("memory.ratio", memory.DefaultMemoryRatio)
	v.SetDefault("memory.check_interval", "5s")

	v.SetDefault("thumbnails.max_thumbnails", thumbnail.DefaultMaxThumbnails)
	v.SetDefault("thumbnails.density", "m")
	v.SetDefault("thumbnails.quality", string(thumbnail.QualityStandard))
	v.SetDefault("thumbnails.format", string(thumbnail.FormatJPEG))
	v.SetDefault("thumbnails.warm_workers", 0)
}

func defaultCachesDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return "/cache"
}

// DefaultConfigPaths returns where config.yaml is looked for, in order.
func DefaultConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "movieview"))
	}
	return append(paths, ".")
}

// Load reads config.yaml from the first of configPaths that has one,
// applies MOVIEVIEW_* environment overrides on top of the defaults, and
// validates the result. Invalid values are replaced by defaults with a
// warning.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		logging.Debug("Using config file %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.validate()

	mediaDir, err := filepath.Abs(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	cfg.MediaDir = mediaDir

	cachesDir, err := filepath.Abs(cfg.CachesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caches directory path: %w", err)
	}
	cfg.CachesDir = cachesDir

	appDir := filepath.Join(cachesDir, appDirName)
	cfg.ThumbnailDir = filepath.Join(appDir, "Thumbnails")
	cfg.IndexPath = filepath.Join(appDir, "index.db")
	cfg.ProbePath = filepath.Join(appDir, "probes.db")

	return cfg, nil
}

// validate replaces out-of-range values with defaults.
func (c *Config) validate() {
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			logging.Warn("  Invalid log_level %q, keeping %s", c.LogLevel, logging.GetLevel())
			c.LogLevel = ""
		}
	}

	if c.Disk.MaxBytes <= 0 {
		logging.Warn("  Invalid disk.max_bytes %d, using default: %s", c.Disk.MaxBytes, memory.FormatBytes(diskcache.DefaultMaxBytes))
		c.Disk.MaxBytes = diskcache.DefaultMaxBytes
	}
	if !(c.Disk.TargetFraction > 0 && c.Disk.TargetFraction <= 1) {
		logging.Warn("  Invalid disk.target_fraction %v, using default: %v", c.Disk.TargetFraction, diskcache.DefaultTargetFraction)
		c.Disk.TargetFraction = diskcache.DefaultTargetFraction
	}
	if c.Disk.SweepInterval < 0 {
		c.Disk.SweepInterval = 0
	}

	if c.Memory.CountLimit <= 0 {
		logging.Warn("  Invalid memory.count_limit %d, using default: %d", c.Memory.CountLimit, memcache.DefaultCountLimit)
		c.Memory.CountLimit = memcache.DefaultCountLimit
	}
	if c.Memory.CostLimit <= 0 {
		c.Memory.CostLimit = memory.DefaultCacheCostLimit()
	}
	if c.Memory.CheckInterval <= 0 {
		c.Memory.CheckInterval = 5 * time.Second
	}

	if c.Thumbnails.MaxThumbnails < 0 {
		logging.Warn("  Invalid thumbnails.max_thumbnails %d, using default: %d", c.Thumbnails.MaxThumbnails, thumbnail.DefaultMaxThumbnails)
		c.Thumbnails.MaxThumbnails = thumbnail.DefaultMaxThumbnails
	}

	density, err := thumbnail.ParseDensity(strings.ToLower(c.Thumbnails.Density))
	if err != nil {
		logging.Warn("  %v, using default: m", err)
		density = thumbnail.DefaultDensity
	}
	quality, err := thumbnail.ParseQuality(strings.ToLower(c.Thumbnails.Quality))
	if err != nil {
		logging.Warn("  %v, using default: %s", err, thumbnail.QualityStandard)
		quality = thumbnail.QualityStandard
	}
	format, err := thumbnail.ParseFormat(strings.ToLower(c.Thumbnails.Format))
	if err != nil {
		logging.Warn("  %v, using default: %s", err, thumbnail.FormatJPEG)
		format = thumbnail.FormatJPEG
	}

	c.Thumbnails.Density = density.Name()
	c.Thumbnails.Quality = string(quality)
	c.Thumbnails.Format = string(format)
	c.Parameters = thumbnail.NewParameters(density, quality, format)
}

// LoadConfig prints the banner, loads the configuration from the default
// locations and prepares the cache directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := Load(DefaultConfigPaths()...)
	if err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		logging.SetLevel(level)
	}

	cfg.Log()

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	appDir := filepath.Dir(cfg.ThumbnailDir)
	if err := ensureDirectory(appDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}
	if err := testWriteAccess(appDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required for thumbnails): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable: %s", appDir)

	return cfg, nil
}

// Log prints the configuration report.
func (c *Config) Log() {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:           %s", c.MediaDir)
	logging.Info("  CACHES_DIR:          %s", c.CachesDir)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("")
	logging.Info("  Disk cache:")
	logging.Info("    Root:              %s", c.ThumbnailDir)
	logging.Info("    Budget:            %s (evict to %.0f%%)", memory.FormatBytes(c.Disk.MaxBytes), c.Disk.TargetFraction*100)
	logging.Info("    Sweep interval:    %s", durationOrDisabled(c.Disk.SweepInterval))
	logging.Info("  Memory cache:")
	logging.Info("    Entries:           %d", c.Memory.CountLimit)
	logging.Info("    Cost limit:        %s", memory.FormatBytes(c.Memory.CostLimit))
	logging.Info("  Thumbnails:")
	logging.Info("    Density:           %s", c.Thumbnails.Density)
	logging.Info("    Quality:           %s", c.Thumbnails.Quality)
	logging.Info("    Format:            %s", c.Thumbnails.Format)
	logging.Info("    Max per video:     %d", c.Thumbnails.MaxThumbnails)
}

func durationOrDisabled(d time.Duration) string {
	if d <= 0 {
		return "DISABLED"
	}
	return d.String()
}
