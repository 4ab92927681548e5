package images

import (
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatWebP ImageFormat = "webp"
	FormatPNG  ImageFormat = "png"
)

// Extension returns the file extension for the format, without the dot.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// ParseFormat maps a name or file extension ("jpg", ".png", "webp") to an ImageFormat.
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png", "":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", errors.Errorf("unsupported image format: %q", s)
	}
}
