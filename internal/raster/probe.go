package raster

import (
	"fmt"

	"github.com/discord/lilliput"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"

	"github.com/giobyte8/thumbforge/internal/apperrors"
)

// Info describes an encoded image without decoding its pixels.
type Info struct {
	Encoding Encoding
	MimeType string
	Width    int
	Height   int
}

// Probe sniffs the container of buf and reads its header.
//
// Unknown or non image content fails with ErrUnparsableImage, recognized
// image formats other than JPEG, GIF and PNG fail with
// ErrUnsupportedEncoding.
func Probe(buf []byte) (Info, error) {
	kind, err := filetype.Match(buf)
	if err != nil || kind == types.Unknown || kind.MIME.Type != "image" {
		return Info{}, fmt.Errorf(
			"%w: unrecognized image container",
			apperrors.ErrUnparsableImage,
		)
	}

	enc := encodingForType(kind)
	if enc == EncodingUnknown {
		return Info{}, fmt.Errorf(
			"%w: %s",
			apperrors.ErrUnsupportedEncoding,
			kind.MIME.Value,
		)
	}

	width, height, err := headerDimensions(buf)
	if err != nil {
		return Info{}, err
	}

	return Info{
		Encoding: enc,
		MimeType: enc.MimeType(),
		Width:    width,
		Height:   height,
	}, nil
}

func encodingForType(kind types.Type) Encoding {
	switch kind {
	case matchers.TypeJpeg:
		return EncodingJPEG
	case matchers.TypeGif:
		return EncodingGIF
	case matchers.TypePng:
		return EncodingPNG
	default:
		return EncodingUnknown
	}
}

func headerDimensions(buf []byte) (int, int, error) {
	decoder, err := lilliput.NewDecoder(buf)
	if err != nil {
		return 0, 0, fmt.Errorf(
			"%w: failed to create decoder: %v",
			apperrors.ErrUnparsableImage,
			err,
		)
	}
	defer decoder.Close()

	header, err := decoder.Header()
	if err != nil {
		return 0, 0, fmt.Errorf(
			"%w: failed to read image header: %v",
			apperrors.ErrUnparsableImage,
			err,
		)
	}

	width := header.Width()
	height := header.Height()
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf(
			"%w: invalid image dimensions: width=%d, height=%d",
			apperrors.ErrUnparsableImage,
			width,
			height,
		)
	}

	return width, height, nil
}
