// Package handlers provides the HTTP API of the thumbnail service.
//
// It includes handlers for:
//   - Single thumbnails and whole-video generation sessions
//   - Cache invalidation, statistics and eviction sweeps
//   - Simulated memory pressure
//   - Health checks and build information
//
// Video paths are always relative to the media directory. Errors are
// rendered as the platform error JSON body plus a recovery suggestion.
package handlers
