package thumbsgen

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giobyte8/thumbforge/internal/raster"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// writeFixture writes a width x height image filled with bg, with an
// optional centered square of fg, encoded as enc.
func writeFixture(
	t *testing.T,
	dir string,
	name string,
	enc raster.Encoding,
	width, height int,
	bg color.NRGBA,
	fg *color.NRGBA,
	square int,
) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	x0, y0 := (width-square)/2, (height-square)/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if fg != nil && x >= x0 && x < x0+square && y >= y0 && y < y0+square {
				img.SetNRGBA(x, y, *fg)
			} else {
				img.SetNRGBA(x, y, bg)
			}
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch enc {
	case raster.EncodingJPEG:
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	case raster.EncodingGIF:
		require.NoError(t, gif.Encode(f, img, nil))
	case raster.EncodingPNG:
		require.NoError(t, png.Encode(f, img))
	}

	return path
}

// writeKeyedPNG writes a paletted PNG whose background uses a fully
// transparent palette entry of color key, with a centered square of fg.
func writeKeyedPNG(
	t *testing.T,
	dir string,
	name string,
	width, height int,
	key color.NRGBA,
	fg color.NRGBA,
	square int,
) string {
	t.Helper()

	pal := color.Palette{
		color.NRGBA{R: key.R, G: key.G, B: key.B, A: 0},
		fg,
	}
	img := image.NewPaletted(image.Rect(0, 0, width, height), pal)
	x0, y0 := (width-square)/2, (height-square)/2
	for y := y0; y < y0+square; y++ {
		for x := x0; x < x0+square; x++ {
			img.SetColorIndex(x, y, 1)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
	return path
}

func newTestFactory() *Factory {
	return NewFactory(raster.NewNativeBackend())
}

func load(t *testing.T, f *Factory, path string) *Decorator {
	t.Helper()

	d, err := f.FromSource(path)
	require.NoError(t, err)
	return d
}
