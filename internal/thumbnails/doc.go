// Package thumbnails resolves video thumbnails through both cache tiers and
// the frame extractor.
//
// A lookup tries the memory cache, then the disk cache, then extracts a
// fresh frame. A disk hit is promoted into memory; a fresh frame is resized
// to its quality tier, written to disk and promoted into memory.
//
// A Session produces every thumbnail of one video for a parameter set, in
// timestamp order, and can be cancelled between thumbnails. Only one
// session per video runs at a time.
package thumbnails
