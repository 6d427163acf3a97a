// Package main provides the entry point for the MovieView thumbnail service.
//
// MovieView serves preview thumbnails of the videos in a media directory. A
// thumbnail is answered from a cost-bounded in-memory LRU, then from a
// size-bounded on-disk cache, and only then extracted from the video with
// ffmpeg. Whole videos can be generated in one request, and the disk cache
// evicts least-recently-used videos when it outgrows its budget.
//
// # Application Lifecycle
//
//  1. Configuration Loading: defaults, config.yaml and MOVIEVIEW_* variables
//  2. Memory Configuration: GOMEMLIMIT from the configured container limit
//  3. Tool Checks: ffmpeg, ffprobe and libvips (HEIC falls back to JPEG)
//  4. Cache Initialization:
//     - Size index: SQLite database tracking bytes per cached video
//     - Disk cache: reconciled against the index when it was not closed cleanly
//     - Probe cache: bbolt database of ffprobe results by fingerprint
//  5. Background Services: memory monitor, disk sweeper, media watcher,
//     metrics collector
//  6. HTTP Server Setup: routes, middleware and the optional metrics server
//  7. Graceful Shutdown: SIGINT/SIGTERM stops everything and closes the caches
//
// # Background Services
//
//   - Memory Monitor: shrinks the memory cache under heap pressure
//   - Sweeper: evicts from the disk cache on a fixed interval
//   - Media Watcher: drops thumbnails of videos that are deleted or rewritten
//   - Metrics Collector: publishes cache sizes to Prometheus
//
// # HTTP Server
//
//  1. Main Server (default port 8080): the thumbnail and cache API plus
//     /healthz, /livez and /version
//  2. Metrics Server (default port 9090, optional): /metrics
//
// # Graceful Shutdown
//
//  1. Stop accepting HTTP requests; running sessions are cancelled
//  2. Stop the watcher, sweeper, memory monitor and collector
//  3. Close the disk cache (marking the size index clean), the index and
//     the probe cache
//  4. Shut down libvips
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. ffmpeg and ffprobe must be on the
// PATH or configured with ffmpeg_path and ffprobe_path.
//
//	go build -o movieview ./cmd/movieview
package main
