package thumbsgen

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/colorspec"
	"github.com/giobyte8/thumbforge/internal/raster"
)

type Orientation int

const (
	Landscape Orientation = iota
	Portrait
	Square
)

func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "landscape"
	case Portrait:
		return "portrait"
	default:
		return "square"
	}
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Summary is a plain description of a decorator's geometry.
type Summary struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Orientation Orientation `json:"orientation"`
}

// Decorator owns one decoded image and exposes the geometry operations
// applied to it.
//
// Resize, Crop and Mount never modify the receiver. They return a new
// Decorator owning its own image and the caller should treat the receiver
// as consumed.
type Decorator struct {
	variant Variant
	factory *Factory
	backend raster.Backend

	image  *raster.Image
	width  int
	height int
}

func newDecorator(f *Factory, v Variant) *Decorator {
	return &Decorator{
		variant: v,
		factory: f,
		backend: f.backend,
	}
}

// Load takes ownership of an already decoded image.
func (d *Decorator) Load(img *raster.Image) error {
	if d.backend == nil {
		return apperrors.ErrBackendUnavailable
	}
	if img == nil || img.Pix == nil {
		return fmt.Errorf("%w: expected a decoded image", apperrors.ErrInvalidArgument)
	}

	d.image = img
	d.width = img.Width()
	d.height = img.Height()
	return nil
}

// LoadFile decodes the image at path with this decorator's variant.
func (d *Decorator) LoadFile(path string) error {
	if d.backend == nil {
		return apperrors.ErrBackendUnavailable
	}

	img, err := d.variant.Decode(path)
	if err != nil {
		return err
	}

	return d.Load(img)
}

func (d *Decorator) Image() *raster.Image      { return d.image }
func (d *Decorator) Width() int                { return d.width }
func (d *Decorator) Height() int               { return d.height }
func (d *Decorator) Encoding() raster.Encoding { return d.variant.Encoding() }
func (d *Decorator) MimeType() string          { return d.variant.MimeType() }

func (d *Decorator) Orientation() Orientation {
	switch {
	case d.width > d.height:
		return Landscape
	case d.width < d.height:
		return Portrait
	default:
		return Square
	}
}

func (d *Decorator) Summary() Summary {
	return Summary{
		Width:       d.width,
		Height:      d.height,
		Orientation: d.Orientation(),
	}
}

// Resize resamples the image to width x height. A zero dimension keeps
// its current value, unless preserveAspect is set and the other dimension
// was given, in which case it is derived proportionally.
func (d *Decorator) Resize(width, height int, preserveAspect bool) (*Decorator, error) {
	reqWidth, reqHeight := width, height

	if reqWidth == 0 {
		if !preserveAspect || reqHeight == 0 || d.height == 0 {
			width = d.width
		} else {
			width = ProportionalSize(reqHeight, d.height, d.width)
		}
	}

	if reqHeight == 0 {
		if !preserveAspect || reqWidth == 0 || d.width == 0 {
			height = d.height
		} else {
			height = ProportionalSize(reqWidth, d.width, d.height)
		}
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf(
			"%w: cannot resize to %dx%d",
			apperrors.ErrInvalidArgument,
			width,
			height,
		)
	}

	slog.Debug(
		"Resizing image",
		"from", fmt.Sprintf("%dx%d", d.width, d.height),
		"to", fmt.Sprintf("%dx%d", width, height),
	)

	canvas := d.variant.NewCanvas(d.image, width, height)
	d.backend.Resample(
		canvas,
		image.Rect(0, 0, width, height),
		d.image,
		d.image.Bounds(),
	)

	return d.derive(canvas)
}

// Crop extracts a centered rectangle. A zero dimension keeps its current
// value.
func (d *Decorator) Crop(width, height int) (*Decorator, error) {
	if width == 0 {
		width = d.width
	}
	if height == 0 {
		height = d.height
	}

	if width < 0 || height < 0 {
		return nil, fmt.Errorf(
			"%w: cannot crop to %dx%d",
			apperrors.ErrInvalidArgument,
			width,
			height,
		)
	}

	x := (d.width - width) / 2
	y := (d.height - height) / 2
	bounds := d.image.Bounds()
	rect := image.Rect(x, y, x+width, y+height).Add(bounds.Min)

	slog.Debug(
		"Cropping image",
		"from", fmt.Sprintf("%dx%d", d.width, d.height),
		"rect", rect.String(),
	)

	return d.derive(d.backend.Crop(d.image, rect))
}

// Mount centers the image on a width x height background filled with
// color. color is anything colorspec.Parse accepts.
func (d *Decorator) Mount(width, height int, color any) (*Decorator, error) {
	if width < d.width || height < d.height {
		return nil, fmt.Errorf(
			"%w: cannot mount image: mount %dx%d is smaller than image %dx%d",
			apperrors.ErrInvalidArgument,
			width,
			height,
			d.width,
			d.height,
		)
	}

	fill, err := colorspec.Parse(color)
	if err != nil {
		return nil, err
	}

	slog.Debug(
		"Mounting image",
		"image", fmt.Sprintf("%dx%d", d.width, d.height),
		"mount", fmt.Sprintf("%dx%d", width, height),
		"color", fill.String(),
	)

	mount := d.backend.NewCanvas(width, height)
	d.backend.Fill(mount, fill)

	pos := image.Pt((width-d.width)/2, (height-d.height)/2)
	d.backend.Copy(mount, pos, d.image)

	return d.derive(mount)
}

// Output encodes the image to the file at path, creating or truncating
// it. When enc is set and differs from the decorator's encoding, output is
// delegated to a decorator of the target encoding.
func (d *Decorator) Output(path string, enc raster.Encoding, quality int) error {
	target, err := d.retarget(enc)
	if err != nil {
		return err
	}
	if target != d {
		return target.Output(path, enc, quality)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	if err := d.variant.Encode(f, d.image, quality); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file %s: %w", path, err)
	}

	return nil
}

// Write encodes the image to w, converting to enc like Output does.
func (d *Decorator) Write(w io.Writer, enc raster.Encoding, quality int) error {
	target, err := d.retarget(enc)
	if err != nil {
		return err
	}
	if target != d {
		return target.Write(w, enc, quality)
	}

	return d.variant.Encode(w, d.image, quality)
}

func (d *Decorator) retarget(enc raster.Encoding) (*Decorator, error) {
	if enc == raster.EncodingUnknown || enc == d.Encoding() {
		return d, nil
	}

	slog.Debug(
		"Converting image encoding",
		"from", d.Encoding().String(),
		"to", enc.String(),
	)
	return d.factory.FromImage(d.image, enc)
}

// derive wraps img in a new decorator of the same variant.
func (d *Decorator) derive(img *raster.Image) (*Decorator, error) {
	next := &Decorator{
		variant: d.variant,
		factory: d.factory,
		backend: d.backend,
	}

	if err := next.Load(img); err != nil {
		return nil, err
	}
	return next, nil
}

// ProportionalSize returns ceil(altNew / altCurrent * dimCurrent): the
// size a dimension takes when its counterpart goes from altCurrent to
// altNew.
func ProportionalSize(altNew, altCurrent, dimCurrent int) int {
	if altCurrent == 0 {
		return 0
	}

	num := altNew * dimCurrent
	q := num / altCurrent
	if num%altCurrent != 0 && (num > 0) == (altCurrent > 0) {
		q++
	}
	return q
}
