/*
Package workers sizes the goroutine pools used for cache warm-up and image
processing.

Counts are derived from GOMAXPROCS rather than runtime.NumCPU, so a container
with a CPU quota gets a pool matching its quota instead of the host's core
count (Go 1.19+ sets GOMAXPROCS from cgroup limits).

	// I/O-bound: ffmpeg subprocesses and disk writes, 2 per CPU, at most 8
	n := workers.ForIO(8)

	// CPU-bound: libvips encode threads, 1 per CPU
	n := workers.ForCPU(0)

An operator-supplied count set with SetOverride (the `workers` configuration
key) replaces the computed value but is still capped by the caller's limit.
*/
package workers
