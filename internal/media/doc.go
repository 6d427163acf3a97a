// Package media encodes, decodes and scales thumbnail images.
//
// JPEG goes through imaging. HEIC goes through libvips (govips), which must
// be started with InitVips; without it HEIC operations fail with
// ErrVipsUnavailable and callers fall back to JPEG.
package media
