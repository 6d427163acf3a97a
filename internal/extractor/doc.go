// Package extractor wraps the external tools the cache depends on: ffmpeg
// for decoding single frames and ffprobe for reading duration and
// dimensions. Both run through a Runner so tests can substitute canned
// output.
package extractor
