package thumbsgen

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/raster"
)

// Factory selects the decorator variant matching an image's encoding.
type Factory struct {
	backend raster.Backend
}

func NewFactory(backend raster.Backend) *Factory {
	return &Factory{backend: backend}
}

// VariantFor returns the variant handling enc.
func (f *Factory) VariantFor(enc raster.Encoding) (Variant, error) {
	switch enc {
	case raster.EncodingJPEG:
		return &jpegVariant{backend: f.backend}, nil
	case raster.EncodingGIF:
		return &gifVariant{backend: f.backend}, nil
	case raster.EncodingPNG:
		return &pngVariant{backend: f.backend}, nil
	default:
		return nil, fmt.Errorf(
			"%w: image type %q is not currently supported",
			apperrors.ErrUnsupportedEncoding,
			enc.String(),
		)
	}
}

// FromSource probes the file at path and decodes it with the matching
// variant.
func (f *Factory) FromSource(path string) (*Decorator, error) {
	if f.backend == nil {
		return nil, apperrors.ErrBackendUnavailable
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf(
				"%w: image file does not exist at %s",
				apperrors.ErrNotFound,
				path,
			)
		}
		return nil, fmt.Errorf("failed to read image file %s: %w", path, err)
	}

	info, err := f.backend.Probe(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	slog.Debug(
		"Probed image",
		"path", path,
		"mime", info.MimeType,
		"width", info.Width,
		"height", info.Height,
	)

	variant, err := f.VariantFor(info.Encoding)
	if err != nil {
		return nil, err
	}

	d := newDecorator(f, variant)
	if err := d.LoadFile(path); err != nil {
		return nil, err
	}

	return d, nil
}

// FromImage wraps an already decoded image in the variant for enc.
func (f *Factory) FromImage(img *raster.Image, enc raster.Encoding) (*Decorator, error) {
	variant, err := f.VariantFor(enc)
	if err != nil {
		return nil, err
	}

	d := newDecorator(f, variant)
	if err := d.Load(img); err != nil {
		return nil, err
	}

	return d, nil
}
