// Package diskcache stores encoded thumbnails on local disk, one directory
// per video fingerprint:
//
//	<root>/<fingerprint>/metadata.json
//	<root>/<fingerprint>/thumbnails/<seconds>_<quality>.<jpeg|heic>
//
// Every write goes through a temp file and a rename, image first and
// metadata second, so a crash leaves at most an orphan image and never a
// metadata record pointing at a missing file.
//
// # Budget
//
// Total bytes under the root are tracked in a size index (see the database
// package) rather than by walking the tree on every write. After each store
// the total is compared against MaxBytes; if it is exceeded, whole video
// directories are removed in order of their metadata's last access, oldest
// first, until the total falls to TargetFraction of MaxBytes. Directories
// whose metadata cannot be read sort before everything else.
//
// If the index was not closed cleanly it is rebuilt from a directory walk
// when the store opens. Reconcile forces the same rebuild.
//
// # Concurrency
//
// All operations on a Store are serialized by one mutex. Image encoding and
// decoding happen outside it.
package diskcache
