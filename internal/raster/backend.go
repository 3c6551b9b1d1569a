// Package raster is the rasterization collaborator used by the thumbnail
// decorators: decode, canvas allocation, resampling, pixel copy, fill, crop
// and per-format encoding.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/giobyte8/thumbforge/internal/colorspec"
)

// Backend exposes the pixel operations the decorators delegate to.
type Backend interface {
	Probe(buf []byte) (Info, error)
	Decode(r io.Reader, enc Encoding) (*Image, error)

	// NewCanvas allocates an opaque true color canvas.
	NewCanvas(width, height int) *Image
	// NewTransparentCanvas allocates a fully transparent canvas with alpha
	// saving enabled.
	NewTransparentCanvas(width, height int) *Image

	Fill(img *Image, c colorspec.Color)
	Resample(dst *Image, dr image.Rectangle, src *Image, sr image.Rectangle)
	Copy(dst *Image, pt image.Point, src *Image)
	Crop(src *Image, r image.Rectangle) *Image

	EncodeJPEG(w io.Writer, img *Image, quality int) error
	// EncodePNG takes a zlib style level from 0 (none) to 9 (best).
	EncodePNG(w io.Writer, img *Image, level int) error
	EncodeGIF(w io.Writer, img *Image) error
}

// NativeBackend implements Backend on top of imaging and x/image/draw.
type NativeBackend struct {
	// Interpolator used when resampling.
	Filter draw.Interpolator
}

func NewNativeBackend() *NativeBackend {
	return &NativeBackend{Filter: draw.CatmullRom}
}

func (b *NativeBackend) Probe(buf []byte) (Info, error) {
	return Probe(buf)
}

func (b *NativeBackend) Decode(r io.Reader, enc Encoding) (*Image, error) {
	switch enc {
	case EncodingJPEG:
		src, err := imaging.Decode(r, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode jpeg: %w", err)
		}
		return &Image{Pix: imaging.Clone(src)}, nil

	case EncodingPNG:
		src, err := png.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode png: %w", err)
		}
		return &Image{
			Pix:       imaging.Clone(src),
			Key:       paletteKey(src),
			SaveAlpha: true,
		}, nil

	case EncodingGIF:
		src, err := gif.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode gif: %w", err)
		}
		return &Image{Pix: imaging.Clone(src)}, nil

	default:
		return nil, fmt.Errorf("no decoder for encoding %s", enc)
	}
}

func (b *NativeBackend) NewCanvas(width, height int) *Image {
	return &Image{Pix: imaging.New(width, height, color.NRGBA{A: 255})}
}

func (b *NativeBackend) NewTransparentCanvas(width, height int) *Image {
	return &Image{
		Pix:       imaging.New(width, height, color.NRGBA{}),
		SaveAlpha: true,
	}
}

func (b *NativeBackend) Fill(img *Image, c colorspec.Color) {
	bounds := img.Bounds()
	img.Pix = imaging.New(bounds.Dx(), bounds.Dy(), ColorFor(c))
}

func (b *NativeBackend) Resample(
	dst *Image,
	dr image.Rectangle,
	src *Image,
	sr image.Rectangle,
) {
	filter := b.Filter
	if filter == nil {
		filter = draw.CatmullRom
	}

	filter.Scale(dst.Pix, dr, src.Pix, sr, draw.Over, nil)
}

func (b *NativeBackend) Copy(dst *Image, pt image.Point, src *Image) {
	dst.Pix = imaging.Overlay(dst.Pix, src.Pix, pt, 1.0)
}

func (b *NativeBackend) Crop(src *Image, r image.Rectangle) *Image {
	return &Image{
		Pix:       imaging.Crop(src.Pix, r),
		Key:       src.Key,
		SaveAlpha: src.SaveAlpha,
	}
}

func (b *NativeBackend) EncodeJPEG(w io.Writer, img *Image, quality int) error {
	return imaging.Encode(w, img.Pix, imaging.JPEG, imaging.JPEGQuality(quality))
}

func (b *NativeBackend) EncodePNG(w io.Writer, img *Image, level int) error {
	pix := img.Pix
	if img.Key != nil || !img.SaveAlpha {
		pix = imaging.Clone(img.Pix)
		for i := 0; i+3 < len(pix.Pix); i += 4 {
			px := color.NRGBA{
				R: pix.Pix[i],
				G: pix.Pix[i+1],
				B: pix.Pix[i+2],
				A: pix.Pix[i+3],
			}
			switch {
			case isKeyed(px, img.Key):
				pix.Pix[i+3] = 0
			case !img.SaveAlpha:
				pix.Pix[i+3] = 255
			}
		}
	}

	return imaging.Encode(
		w,
		pix,
		imaging.PNG,
		imaging.PNGCompressionLevel(pngCompressionLevel(level)),
	)
}

// EncodeGIF quantizes onto the web safe palette plus one transparent
// entry used for alpha-less and keyed pixels.
func (b *NativeBackend) EncodeGIF(w io.Writer, img *Image) error {
	bounds := img.Bounds()
	pal := make(color.Palette, 0, len(palette.WebSafe)+1)
	pal = append(pal, palette.WebSafe...)
	pal = append(pal, color.Transparent)
	transparentIdx := uint8(len(pal) - 1)

	paletted := image.NewPaletted(bounds, pal)
	draw.FloydSteinberg.Draw(paletted, bounds, img.Pix, bounds.Min)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := img.Pix.NRGBAAt(x, y)
			if px.A == 0 || isKeyed(px, img.Key) {
				paletted.SetColorIndex(x, y, transparentIdx)
			}
		}
	}

	return gif.Encode(w, paletted, &gif.Options{NumColors: 256})
}

// paletteKey returns the first fully transparent palette entry of a
// paletted image as an opaque color key, or nil.
func paletteKey(src image.Image) *color.NRGBA {
	paletted, ok := src.(*image.Paletted)
	if !ok {
		return nil
	}

	for _, entry := range paletted.Palette {
		c := color.NRGBAModel.Convert(entry).(color.NRGBA)
		if c.A == 0 {
			return &color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
		}
	}

	return nil
}

func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
