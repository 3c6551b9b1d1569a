package thumbsgen

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/giobyte8/thumbforge/internal/colorspec"
	"github.com/giobyte8/thumbforge/internal/raster"
)

type jpegVariant struct {
	backend raster.Backend
}

func (v *jpegVariant) Encoding() raster.Encoding { return raster.EncodingJPEG }
func (v *jpegVariant) MimeType() string          { return raster.EncodingJPEG.MimeType() }

func (v *jpegVariant) Decode(path string) (*raster.Image, error) {
	return decodeFile(v.backend, path, raster.EncodingJPEG)
}

func (v *jpegVariant) Encode(w io.Writer, img *raster.Image, quality int) error {
	return v.backend.EncodeJPEG(w, img, quality)
}

func (v *jpegVariant) NewCanvas(_ *raster.Image, width, height int) *raster.Image {
	return v.backend.NewCanvas(width, height)
}

type gifVariant struct {
	backend raster.Backend
}

func (v *gifVariant) Encoding() raster.Encoding { return raster.EncodingGIF }
func (v *gifVariant) MimeType() string          { return raster.EncodingGIF.MimeType() }

func (v *gifVariant) Decode(path string) (*raster.Image, error) {
	return decodeFile(v.backend, path, raster.EncodingGIF)
}

// Encode ignores quality, GIF output is lossless over its palette.
func (v *gifVariant) Encode(w io.Writer, img *raster.Image, _ int) error {
	return v.backend.EncodeGIF(w, img)
}

// NewCanvas returns a white canvas with white as the transparent key.
func (v *gifVariant) NewCanvas(_ *raster.Image, width, height int) *raster.Image {
	canvas := v.backend.NewCanvas(width, height)
	v.backend.Fill(canvas, colorspec.White)

	white := raster.ColorFor(colorspec.White)
	canvas.Key = &white
	return canvas
}

type pngVariant struct {
	backend raster.Backend
}

func (v *pngVariant) Encoding() raster.Encoding { return raster.EncodingPNG }
func (v *pngVariant) MimeType() string          { return raster.EncodingPNG.MimeType() }

func (v *pngVariant) Decode(path string) (*raster.Image, error) {
	return decodeFile(v.backend, path, raster.EncodingPNG)
}

func (v *pngVariant) Encode(w io.Writer, img *raster.Image, quality int) error {
	return v.backend.EncodePNG(w, img, pngLevelForQuality(quality))
}

// NewCanvas keeps the transparent key of current when it has one,
// otherwise the canvas starts fully transparent.
func (v *pngVariant) NewCanvas(current *raster.Image, width, height int) *raster.Image {
	if current != nil && current.Key != nil {
		canvas := v.backend.NewCanvas(width, height)
		key := *current.Key
		v.backend.Fill(canvas, colorspec.Color{key.R, key.G, key.B, 0})
		canvas.Key = &color.NRGBA{R: key.R, G: key.G, B: key.B, A: 255}
		return canvas
	}

	return v.backend.NewTransparentCanvas(width, height)
}

// pngLevelForQuality maps a 0-100 quality percentage onto a 9-0
// compression level.
func pngLevelForQuality(quality int) int {
	return int(math.Round(math.Abs(float64(quality-100) / 11.111111)))
}

func decodeFile(
	backend raster.Backend,
	path string,
	enc raster.Encoding,
) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer f.Close()

	img, err := backend.Decode(f, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image file %s: %w", path, err)
	}

	return img, nil
}
