// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [Load] layers three sources with github.com/spf13/viper: built-in
// defaults, an optional config.yaml (in $XDG_CONFIG_HOME/movieview, then the
// working directory), and MOVIEVIEW_* environment variables. Nested keys
// use underscores in the environment:
//
//   - MOVIEVIEW_MEDIA_DIR: directory videos are served from (default: /media)
//   - MOVIEVIEW_CACHES_DIR: base caches directory (default: the user cache dir)
//   - MOVIEVIEW_PORT / MOVIEVIEW_METRICS_PORT: HTTP ports (default: 8080 / 9090)
//   - MOVIEVIEW_METRICS_ENABLED: serve Prometheus metrics (default: true)
//   - MOVIEVIEW_LOG_LEVEL: debug, info, warn or error
//   - MOVIEVIEW_DISK_MAX_BYTES: disk cache budget (default: 5 GiB)
//   - MOVIEVIEW_DISK_TARGET_FRACTION: share of the budget eviction shrinks to (default: 0.8)
//   - MOVIEVIEW_DISK_SWEEP_INTERVAL: background eviction interval, 0 disables (default: 10m)
//   - MOVIEVIEW_MEMORY_COUNT_LIMIT: memory cache entries (default: 1000)
//   - MOVIEVIEW_MEMORY_COST_LIMIT: memory cache bytes (default: min(25% RAM, 4 GiB))
//   - MOVIEVIEW_MEMORY_LIMIT / MOVIEVIEW_MEMORY_RATIO: container limit used to set GOMEMLIMIT
//   - MOVIEVIEW_THUMBNAILS_DENSITY: xxl, xl, l, m, s, xs or xxs (default: m)
//   - MOVIEVIEW_THUMBNAILS_QUALITY: preview, standard, high or original (default: standard)
//   - MOVIEVIEW_THUMBNAILS_FORMAT: jpeg or heic (default: jpeg)
//   - MOVIEVIEW_THUMBNAILS_MAX_THUMBNAILS: cap per video (default: 300)
//
// Invalid values are logged and replaced by their defaults.
//
// # Derived paths
//
//	<caches_dir>/MovieView/Thumbnails   disk cache root
//	<caches_dir>/MovieView/index.db     size index
//	<caches_dir>/MovieView/probes.db    probe cache
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
