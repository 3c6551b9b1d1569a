package thumbsgen

import (
	"io"

	"github.com/giobyte8/thumbforge/internal/raster"
)

// Variant holds the format specific behavior of a Decorator: decoding,
// encoding and blank canvas allocation for one encoding.
type Variant interface {
	Encoding() raster.Encoding
	MimeType() string

	// Decode reads and decodes the image file at path.
	Decode(path string) (*raster.Image, error)

	// Encode writes img to w. Quality is a percentage, variants that
	// have no notion of quality ignore it.
	Encode(w io.Writer, img *raster.Image, quality int) error

	// NewCanvas allocates a blank image of the given size. current is
	// the image being transformed, it may be nil.
	NewCanvas(current *raster.Image, width, height int) *raster.Image
}
