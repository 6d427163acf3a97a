// Package filesystem provides the file operations the thumbnail cache relies
// on: stat/open with retry on NFS stale file handles (video libraries often
// live on network mounts), atomic temp-file-and-rename writes so a reader
// never observes a half-written thumbnail, and recursive size accounting for
// the disk cache budget.
//
// # Retry behavior
//
// Only ESTALE is retried. Every other error (not found, permission denied)
// is returned immediately so callers can classify it:
//
//	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
//
// Backoff doubles from InitialBackoff up to MaxBackoff.
//
// # Metrics
//
// Retry outcomes are reported through the package-level Observer installed
// with SetObserver. The metrics package provides the Prometheus
// implementation; with no observer installed, recording is skipped.
package filesystem
