package raster

import (
	"fmt"
	"strings"

	"github.com/giobyte8/thumbforge/internal/apperrors"
)

// Encoding identifies the pixel format and container of an image.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingJPEG
	EncodingGIF
	EncodingPNG
)

// Encodings lists every supported encoding.
var Encodings = []Encoding{EncodingJPEG, EncodingGIF, EncodingPNG}

func (e Encoding) String() string {
	switch e {
	case EncodingJPEG:
		return "jpeg"
	case EncodingGIF:
		return "gif"
	case EncodingPNG:
		return "png"
	default:
		return "unknown"
	}
}

func (e Encoding) MimeType() string {
	switch e {
	case EncodingJPEG:
		return "image/jpeg"
	case EncodingGIF:
		return "image/gif"
	case EncodingPNG:
		return "image/png"
	default:
		return ""
	}
}

// Extension returns the file extension, dot included, used for
// thumbnails written with this encoding.
func (e Encoding) Extension() string {
	switch e {
	case EncodingJPEG:
		return ".jpg"
	case EncodingGIF:
		return ".gif"
	case EncodingPNG:
		return ".png"
	default:
		return ""
	}
}

func (e Encoding) Valid() bool {
	return e == EncodingJPEG || e == EncodingGIF || e == EncodingPNG
}

// ParseEncoding maps a name such as "jpg" or "PNG" to its Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpeg", "jpg":
		return EncodingJPEG, nil
	case "gif":
		return EncodingGIF, nil
	case "png":
		return EncodingPNG, nil
	default:
		return EncodingUnknown, fmt.Errorf(
			"%w: encoding %q is not one of jpeg, gif, png",
			apperrors.ErrInvalidArgument,
			name,
		)
	}
}

func (e Encoding) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return []byte(""), nil
	}
	return []byte(e.String()), nil
}

func (e *Encoding) UnmarshalText(text []byte) error {
	parsed, err := ParseEncoding(string(text))
	if err != nil {
		return err
	}

	*e = parsed
	return nil
}
