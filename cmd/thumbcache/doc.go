// Command thumbcache inspects and maintains the MovieView thumbnail cache
// from the command line.
//
// Usage:
//
//	thumbcache <command> [args]
//
// Commands:
//
//	stats            Show the disk cache size, budget and video count.
//
//	purge <video>... Remove every cached thumbnail of the given videos.
//	                 Videos that no longer exist are purged by the
//	                 fingerprint they were last cached under.
//
//	clear            Remove every cached thumbnail and probe result.
//
//	warm <video>...  Generate thumbnails of the given videos with the
//	                 configured density, quality and format. Progress lines
//	                 are printed when stdout is a terminal.
//
//	sweep            Evict least recently used videos until the cache is
//	                 back under its target size.
//
//	reindex          Rebuild the size index by measuring every cached
//	                 video directory.
//
// Configuration is shared with the server: config.yaml and MOVIEVIEW_*
// environment variables. While the server runs it holds the probe cache,
// so thumbcache then works without it.
package main
