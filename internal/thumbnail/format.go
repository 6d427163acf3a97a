package thumbnail

import "fmt"

// Format is the encoded container of a cached thumbnail.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatHEIC Format = "heic"
)

// Formats lists every supported format in lookup order.
var Formats = []Format{FormatJPEG, FormatHEIC}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of encoded data.
func (f Format) ContentType() string {
	if f == FormatHEIC {
		return "image/heic"
	}
	return "image/jpeg"
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatJPEG || f == FormatHEIC
}

// ParseFormat parses a format name. "jpg" is accepted as an alias.
func ParseFormat(s string) (Format, error) {
	if s == "jpg" {
		return FormatJPEG, nil
	}
	f := Format(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown cache format %q", s)
	}
	return f, nil
}
