package raster

import (
	"image"
	"image/color"

	"github.com/giobyte8/thumbforge/internal/colorspec"
)

// Image is a decoded image handle as manipulated by a Backend.
type Image struct {
	Pix *image.NRGBA

	// Color written as transparent by keyed formats (GIF, PNG).
	// Nil when the image has no transparent key.
	Key *color.NRGBA

	// Keep the alpha channel on encode. When false, formats that support
	// alpha are written fully opaque.
	SaveAlpha bool
}

func (img *Image) Width() int {
	if img == nil || img.Pix == nil {
		return 0
	}
	return img.Pix.Bounds().Dx()
}

func (img *Image) Height() int {
	if img == nil || img.Pix == nil {
		return 0
	}
	return img.Pix.Bounds().Dy()
}

func (img *Image) Bounds() image.Rectangle {
	if img == nil || img.Pix == nil {
		return image.Rectangle{}
	}
	return img.Pix.Bounds()
}

// ColorFor converts a color spec into a pixel color. The fourth channel is
// read as a transparency level where 0 is opaque and 127 (or more) is fully
// transparent.
func ColorFor(c colorspec.Color) color.NRGBA {
	transparency := int(c.A())
	if transparency > 127 {
		transparency = 127
	}

	return color.NRGBA{
		R: c.R(),
		G: c.G(),
		B: c.B(),
		A: uint8(255 - transparency*255/127),
	}
}

func isKeyed(px color.NRGBA, key *color.NRGBA) bool {
	return key != nil && px.R == key.R && px.G == key.G && px.B == key.B
}
