// Package database keeps the SQLite size index for the disk thumbnail cache.
//
// The index stores one row per cached video (fingerprint, total bytes, last
// access) so the cache can enforce its byte budget without walking the
// cache directory on every write. Totals are adjusted incrementally by the
// disk cache as files are written and removed.
//
// A "clean" flag in the metadata table records whether the index was closed
// after its last use. An index opened without the flag may have missed
// updates (crash, kill -9) and is rebuilt by the disk cache from a full
// directory walk.
//
// The database uses WAL mode and a busy timeout so readers never block the
// writer for long.
package database
