// Package logging provides the leveled logger used across the movieview
// thumbnail cache.
//
// It supports the following log levels:
//   - DEBUG: cache tier probes, per-thumbnail decisions
//   - INFO: startup, sessions, eviction summaries
//   - WARN: skipped thumbnails, eviction candidates that could not be removed
//   - ERROR: failures surfaced to callers
//   - FATAL: startup errors that terminate the process
//
// The initial level comes from the DEBUG or LOG_LEVEL environment variables
// and can be replaced once configuration is loaded via SetLevel.
package logging
