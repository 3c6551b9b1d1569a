package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/colorspec"
	"github.com/giobyte8/thumbforge/internal/raster"
)

func TestThumbRequest_UnmarshalJSON(t *testing.T) {
	id := uuid.New()
	body := `{
		"thumbRequestId": "` + id.String() + `",
		"preset": "small",
		"config": {
			"input": "albums/cat.jpg",
			"width": 200,
			"mountColor": [10, 20, 30],
			"encoding": "png",
			"caching": true
		}
	}`

	var req ThumbRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, id, req.ThumbRequestId)
	assert.Equal(t, "small", req.Preset)

	cfg, err := req.Config.Build()
	require.NoError(t, err)
	assert.Equal(t, "albums/cat.jpg", cfg.InputRef())
	assert.Equal(t, 200, cfg.Width())
	assert.Equal(t, colorspec.Color{10, 20, 30, 0}, cfg.MountColor())
	assert.Equal(t, raster.EncodingPNG, cfg.OutputEncoding())
	assert.True(t, cfg.CachingEnabled())
}

func TestThumbRequest_UnmarshalRejectsUnknownEncoding(t *testing.T) {
	var req ThumbRequest
	err := json.Unmarshal([]byte(`{"config": {"input": "a.jpg", "encoding": "webp"}}`), &req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestThumbConfigSpec_Build(t *testing.T) {
	_, err := ThumbConfigSpec{}.Build()
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	input := "a.jpg"
	negative := -4
	_, err = ThumbConfigSpec{Input: &input, Height: &negative}.Build()
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = ThumbConfigSpec{Input: &input, MountColor: "zzz"}.Build()
	assert.ErrorIs(t, err, apperrors.ErrInvalidColor)

	escaping := "../victim.txt"
	_, err = ThumbConfigSpec{Input: &input, Output: &escaping}.Build()
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestThumbConfigSpec_Merge(t *testing.T) {
	width, otherWidth, quality := 100, 300, 60
	input := "a.jpg"

	base := ThumbConfigSpec{Width: &width, Quality: &quality}
	merged := base.Merge(ThumbConfigSpec{Width: &otherWidth, Input: &input})

	assert.Equal(t, 300, *merged.Width)
	assert.Equal(t, 60, *merged.Quality)
	assert.Equal(t, "a.jpg", *merged.Input)
	assert.Equal(t, 100, *base.Width)
}

func TestLoadPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	yamlDoc := `
small:
  sizeConstraint: 256
  encoding: jpeg
  quality: 60
  caching: true
framed:
  width: 200
  mount: true
  mountWidth: 300
  mountHeight: 300
  mountColor: "#CCCCCC"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	presets, err := LoadPresets(path)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	cfg, err := presets.Resolve(ThumbRequest{
		Preset: "small",
		Config: ThumbConfigSpec{Input: ptr("cat.png"), Quality: ptr(80)},
	})
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.SizeConstraint())
	assert.Equal(t, raster.EncodingJPEG, cfg.OutputEncoding())
	assert.Equal(t, 80, cfg.Quality())
	assert.True(t, cfg.CachingEnabled())

	cfg, err = presets.Resolve(ThumbRequest{
		Preset: "framed",
		Config: ThumbConfigSpec{Input: ptr("cat.png")},
	})
	require.NoError(t, err)
	assert.True(t, cfg.MountEnabled())
	assert.Equal(t, colorspec.Color{204, 204, 204, 0}, cfg.MountColor())

	_, err = presets.Resolve(ThumbRequest{
		Preset: "missing",
		Config: ThumbConfigSpec{Input: ptr("cat.png")},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestLoadPresets_Errors(t *testing.T) {
	_, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("small: [unterminated"), 0o644))
	_, err = LoadPresets(path)
	assert.Error(t, err)
}
