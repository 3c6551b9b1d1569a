package models

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/raster"
)

type ThumbRequest struct {
	ThumbRequestId uuid.UUID `json:"thumbRequestId"`

	// Name of a preset used as the base configuration. Optional.
	Preset string `json:"preset,omitempty"`

	// Overrides applied on top of the preset.
	Config ThumbConfigSpec `json:"config"`
}

// ThumbConfigSpec is the wire and file form of a ThumbConfig. Nil fields
// are left at their defaults (or at the preset's value when merged).
type ThumbConfigSpec struct {
	Width           *int             `json:"width,omitempty" yaml:"width,omitempty"`
	Height          *int             `json:"height,omitempty" yaml:"height,omitempty"`
	AspectRatioLock *bool            `json:"aspectRatioLock,omitempty" yaml:"aspectRatioLock,omitempty"`
	SizeConstraint  *int             `json:"sizeConstraint,omitempty" yaml:"sizeConstraint,omitempty"`
	Crop            *bool            `json:"crop,omitempty" yaml:"crop,omitempty"`
	MountEnabled    *bool            `json:"mount,omitempty" yaml:"mount,omitempty"`
	MountWidth      *int             `json:"mountWidth,omitempty" yaml:"mountWidth,omitempty"`
	MountHeight     *int             `json:"mountHeight,omitempty" yaml:"mountHeight,omitempty"`
	MountColor      any              `json:"mountColor,omitempty" yaml:"mountColor,omitempty"`
	Input           *string          `json:"input,omitempty" yaml:"input,omitempty"`
	Output          *string          `json:"output,omitempty" yaml:"output,omitempty"`
	Encoding        *raster.Encoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Quality         *int             `json:"quality,omitempty" yaml:"quality,omitempty"`
	CachingEnabled  *bool            `json:"caching,omitempty" yaml:"caching,omitempty"`
}

// Merge returns s with every field set in over replacing its own.
func (s ThumbConfigSpec) Merge(over ThumbConfigSpec) ThumbConfigSpec {
	merged := s

	if over.Width != nil {
		merged.Width = over.Width
	}
	if over.Height != nil {
		merged.Height = over.Height
	}
	if over.AspectRatioLock != nil {
		merged.AspectRatioLock = over.AspectRatioLock
	}
	if over.SizeConstraint != nil {
		merged.SizeConstraint = over.SizeConstraint
	}
	if over.Crop != nil {
		merged.Crop = over.Crop
	}
	if over.MountEnabled != nil {
		merged.MountEnabled = over.MountEnabled
	}
	if over.MountWidth != nil {
		merged.MountWidth = over.MountWidth
	}
	if over.MountHeight != nil {
		merged.MountHeight = over.MountHeight
	}
	if over.MountColor != nil {
		merged.MountColor = over.MountColor
	}
	if over.Input != nil {
		merged.Input = over.Input
	}
	if over.Output != nil {
		merged.Output = over.Output
	}
	if over.Encoding != nil {
		merged.Encoding = over.Encoding
	}
	if over.Quality != nil {
		merged.Quality = over.Quality
	}
	if over.CachingEnabled != nil {
		merged.CachingEnabled = over.CachingEnabled
	}

	return merged
}

// Build validates the spec through the ThumbConfig setters. The first
// invalid field aborts the build.
func (s ThumbConfigSpec) Build() (*ThumbConfig, error) {
	cfg := NewThumbConfig()

	var err error
	apply := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}

	if s.Input == nil {
		return nil, fmt.Errorf(
			"%w: input filename is required",
			apperrors.ErrInvalidArgument,
		)
	}
	apply(func() error { return cfg.SetInputRef(*s.Input) })

	if s.Width != nil {
		apply(func() error { return cfg.SetWidth(*s.Width) })
	}
	if s.Height != nil {
		apply(func() error { return cfg.SetHeight(*s.Height) })
	}
	if s.AspectRatioLock != nil {
		cfg.SetAspectRatioLock(*s.AspectRatioLock)
	}
	if s.SizeConstraint != nil {
		apply(func() error { return cfg.SetSizeConstraint(*s.SizeConstraint) })
	}
	if s.Crop != nil {
		cfg.SetCrop(*s.Crop)
	}
	if s.MountEnabled != nil {
		cfg.SetMountEnabled(*s.MountEnabled)
	}
	if s.MountWidth != nil {
		apply(func() error { return cfg.SetMountWidth(*s.MountWidth) })
	}
	if s.MountHeight != nil {
		apply(func() error { return cfg.SetMountHeight(*s.MountHeight) })
	}
	if s.MountColor != nil {
		apply(func() error { return cfg.SetMountColor(s.MountColor) })
	}
	if s.Output != nil {
		apply(func() error { return cfg.SetOutputRef(*s.Output) })
	}
	if s.Encoding != nil {
		apply(func() error { return cfg.SetOutputEncoding(*s.Encoding) })
	}
	if s.Quality != nil {
		apply(func() error { return cfg.SetQuality(*s.Quality) })
	}
	if s.CachingEnabled != nil {
		cfg.SetCachingEnabled(*s.CachingEnabled)
	}

	if err != nil {
		return nil, err
	}
	return cfg, nil
}
