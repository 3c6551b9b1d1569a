package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/giobyte8/thumbforge/internal/apperrors"
)

// Presets maps a name to a reusable, usually input-less, configuration.
//
//	small:
//	  sizeConstraint: 256
//	  encoding: jpeg
//	  quality: 60
//	  caching: true
type Presets map[string]ThumbConfigSpec

// LoadPresets reads a YAML presets file.
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file %s: %w", path, err)
	}

	presets := make(Presets)
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse presets file %s: %w", path, err)
	}

	return presets, nil
}

// Resolve builds the configuration for req: its preset, if any, with the
// inline config applied on top.
func (p Presets) Resolve(req ThumbRequest) (*ThumbConfig, error) {
	spec := req.Config

	if req.Preset != "" {
		base, ok := p[req.Preset]
		if !ok {
			return nil, fmt.Errorf(
				"%w: unknown preset %q",
				apperrors.ErrInvalidArgument,
				req.Preset,
			)
		}
		spec = base.Merge(req.Config)
	}

	return spec.Build()
}
