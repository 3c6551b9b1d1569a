package models

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/colorspec"
	"github.com/giobyte8/thumbforge/internal/raster"
)

const DefaultQuality = 100

// ThumbConfig describes a single thumbnail request. Setters validate
// their input immediately. Optional sizes use 0 for "unset".
type ThumbConfig struct {
	width           int
	height          int
	aspectRatioLock bool
	sizeConstraint  int
	crop            bool

	mountEnabled bool
	mountWidth   int
	mountHeight  int
	mountColor   colorspec.Color

	inputRef       string
	outputRef      string
	outputEncoding raster.Encoding
	quality        int
	cachingEnabled bool
}

func NewThumbConfig() *ThumbConfig {
	return &ThumbConfig{
		aspectRatioLock: true,
		mountColor:      colorspec.White,
		quality:         DefaultQuality,
	}
}

func (c *ThumbConfig) Width() int                      { return c.width }
func (c *ThumbConfig) Height() int                     { return c.height }
func (c *ThumbConfig) AspectRatioLock() bool           { return c.aspectRatioLock }
func (c *ThumbConfig) SizeConstraint() int             { return c.sizeConstraint }
func (c *ThumbConfig) Crop() bool                      { return c.crop }
func (c *ThumbConfig) MountEnabled() bool              { return c.mountEnabled }
func (c *ThumbConfig) MountWidth() int                 { return c.mountWidth }
func (c *ThumbConfig) MountHeight() int                { return c.mountHeight }
func (c *ThumbConfig) MountColor() colorspec.Color     { return c.mountColor }
func (c *ThumbConfig) InputRef() string                { return c.inputRef }
func (c *ThumbConfig) OutputRef() string               { return c.outputRef }
func (c *ThumbConfig) OutputEncoding() raster.Encoding { return c.outputEncoding }
func (c *ThumbConfig) Quality() int                    { return c.quality }
func (c *ThumbConfig) CachingEnabled() bool            { return c.cachingEnabled }

// SetWidth sets the thumbnail width, 0 unsets it.
func (c *ThumbConfig) SetWidth(width int) error {
	if err := checkSize("width", width); err != nil {
		return err
	}
	c.width = width
	return nil
}

// SetHeight sets the thumbnail height, 0 unsets it.
func (c *ThumbConfig) SetHeight(height int) error {
	if err := checkSize("height", height); err != nil {
		return err
	}
	c.height = height
	return nil
}

// SetAspectRatioLock controls whether a missing dimension is derived from
// the given one in proportion to the source image.
func (c *ThumbConfig) SetAspectRatioLock(lock bool) {
	c.aspectRatioLock = lock
}

// SetSizeConstraint caps the longest edge of the thumbnail, taking
// precedence over width or height for that edge. 0 unsets it.
func (c *ThumbConfig) SetSizeConstraint(constraint int) error {
	if err := checkSize("size constraint", constraint); err != nil {
		return err
	}
	c.sizeConstraint = constraint
	return nil
}

// SetCrop selects cropping to width/height instead of resizing.
func (c *ThumbConfig) SetCrop(crop bool) {
	c.crop = crop
}

func (c *ThumbConfig) SetMountEnabled(enabled bool) {
	c.mountEnabled = enabled
}

func (c *ThumbConfig) SetMountWidth(width int) error {
	if err := checkSize("mount width", width); err != nil {
		return err
	}
	c.mountWidth = width
	return nil
}

func (c *ThumbConfig) SetMountHeight(height int) error {
	if err := checkSize("mount height", height); err != nil {
		return err
	}
	c.mountHeight = height
	return nil
}

// SetMountColor accepts anything colorspec.Parse does.
func (c *ThumbConfig) SetMountColor(color any) error {
	parsed, err := colorspec.Parse(color)
	if err != nil {
		return fmt.Errorf("mount color: %w", err)
	}
	c.mountColor = parsed
	return nil
}

func (c *ThumbConfig) SetInputRef(ref string) error {
	if ref == "" {
		return fmt.Errorf(
			"%w: input filename must be a non-empty string",
			apperrors.ErrInvalidArgument,
		)
	}
	c.inputRef = ref
	return nil
}

// SetOutputRef sets the thumbnail filename, relative to the thumbnails
// root. An empty ref lets the filename be derived from the configuration.
// Absolute refs and refs escaping the root are rejected.
func (c *ThumbConfig) SetOutputRef(ref string) error {
	if ref != "" && !filepath.IsLocal(ref) {
		return fmt.Errorf(
			"%w: output filename must stay within the thumbnails root, got %q",
			apperrors.ErrInvalidArgument,
			ref,
		)
	}
	c.outputRef = ref
	return nil
}

// SetOutputEncoding selects the thumbnail encoding. EncodingUnknown keeps
// the source encoding.
func (c *ThumbConfig) SetOutputEncoding(enc raster.Encoding) error {
	if enc != raster.EncodingUnknown && !enc.Valid() {
		return fmt.Errorf(
			"%w: image type must be one of jpeg, gif, png",
			apperrors.ErrInvalidArgument,
		)
	}
	c.outputEncoding = enc
	return nil
}

// SetQuality sets the encode quality as a percentage. Not every encoding
// honours it.
func (c *ThumbConfig) SetQuality(quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf(
			"%w: image quality must be a percentage, got %d",
			apperrors.ErrInvalidArgument,
			quality,
		)
	}
	c.quality = quality
	return nil
}

// SetCachingEnabled skips regeneration when a thumbnail newer than its
// source already exists.
func (c *ThumbConfig) SetCachingEnabled(enabled bool) {
	c.cachingEnabled = enabled
}

// Spec returns the full configuration as a spec with every field set.
func (c *ThumbConfig) Spec() ThumbConfigSpec {
	color := []int{
		int(c.mountColor.R()),
		int(c.mountColor.G()),
		int(c.mountColor.B()),
		int(c.mountColor.A()),
	}

	spec := ThumbConfigSpec{
		Width:           ptr(c.width),
		Height:          ptr(c.height),
		AspectRatioLock: ptr(c.aspectRatioLock),
		SizeConstraint:  ptr(c.sizeConstraint),
		Crop:            ptr(c.crop),
		MountEnabled:    ptr(c.mountEnabled),
		MountWidth:      ptr(c.mountWidth),
		MountHeight:     ptr(c.mountHeight),
		MountColor:      color,
		Input:           ptr(c.inputRef),
		Output:          ptr(c.outputRef),
		Quality:         ptr(c.quality),
		CachingEnabled:  ptr(c.cachingEnabled),
	}
	if c.outputEncoding.Valid() {
		spec.Encoding = ptr(c.outputEncoding)
	}

	return spec
}

// ContentHash is a stable digest over every configuration field.
func (c *ThumbConfig) ContentHash() string {
	snapshot, err := json.Marshal(c.Spec())
	if err != nil {
		// Spec holds only ints, bools, strings and an encoding
		panic(fmt.Sprintf("failed to serialize thumbnail config: %v", err))
	}

	sum := md5.Sum(snapshot)
	return hex.EncodeToString(sum[:])
}

func checkSize(name string, value int) error {
	if value < 0 {
		return fmt.Errorf(
			"%w: %s must be a positive integer, got %d",
			apperrors.ErrInvalidArgument,
			name,
			value,
		)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
