package services

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/models"
	"github.com/giobyte8/thumbforge/internal/raster"
	"github.com/giobyte8/thumbforge/internal/telemetry"
	"github.com/giobyte8/thumbforge/internal/telemetry/metrics"
	thumbsgen "github.com/giobyte8/thumbforge/internal/thumbs_gen"
)

type fixture struct {
	originals  string
	thumbnails string
	metrics    *metrics.RecordingMetricsSvc
	svc        *ThumbnailsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		originals:  t.TempDir(),
		thumbnails: t.TempDir(),
		metrics:    metrics.NewRecordingMetricsSvc(),
	}

	svc, err := NewThumbnailsService(
		ThumbnailsConfig{
			DirOriginalsRoot:  f.originals,
			DirThumbnailsRoot: f.thumbnails,
		},
		thumbsgen.NewFactory(raster.NewNativeBackend()),
		telemetry.NewTelemetrySvcWith(f.metrics),
	)
	require.NoError(t, err)

	f.svc = svc
	return f
}

// writeImage stores a solid image under the originals root.
func (f *fixture) writeImage(t *testing.T, name string, width, height int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 30, G: 90, B: 200, A: 255})
		}
	}

	path := filepath.Join(f.originals, name)
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	switch filepath.Ext(name) {
	case ".jpg":
		require.NoError(t, jpeg.Encode(out, img, nil))
	case ".gif":
		require.NoError(t, gif.Encode(out, img, nil))
	case ".png":
		require.NoError(t, png.Encode(out, img))
	case ".bmp":
		require.NoError(t, bmp.Encode(out, img))
	default:
		t.Fatalf("no encoder for %s", name)
	}

	return path
}

func (f *fixture) create(t *testing.T, cfg *models.ThumbConfig) ThumbnailResult {
	t.Helper()

	result, err := f.svc.CreateThumbnail(cfg)
	require.NoError(t, err)
	require.True(t, result.OK(), "write failed: %v", result.WriteErr)
	return result
}

func dimensions(t *testing.T, path string) (string, int, int) {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	imgCfg, format, err := image.DecodeConfig(file)
	require.NoError(t, err)
	return format, imgCfg.Width, imgCfg.Height
}

type configOpt func(t *testing.T, c *models.ThumbConfig)

func withWidth(w int) configOpt {
	return func(t *testing.T, c *models.ThumbConfig) { require.NoError(t, c.SetWidth(w)) }
}

func withHeight(h int) configOpt {
	return func(t *testing.T, c *models.ThumbConfig) { require.NoError(t, c.SetHeight(h)) }
}

func withConstraint(n int) configOpt {
	return func(t *testing.T, c *models.ThumbConfig) { require.NoError(t, c.SetSizeConstraint(n)) }
}

func withMount(w, h int) configOpt {
	return func(t *testing.T, c *models.ThumbConfig) {
		c.SetMountEnabled(true)
		require.NoError(t, c.SetMountWidth(w))
		require.NoError(t, c.SetMountHeight(h))
	}
}

func newConfig(t *testing.T, input string, opts ...configOpt) *models.ThumbConfig {
	t.Helper()

	cfg := models.NewThumbConfig()
	require.NoError(t, cfg.SetInputRef(input))
	for _, opt := range opts {
		opt(t, cfg)
	}
	return cfg
}

func TestNewThumbnailsService_ValidatesRoots(t *testing.T) {
	factory := thumbsgen.NewFactory(raster.NewNativeBackend())
	tel := telemetry.NewTelemetrySvcWith(metrics.NewNoopMetricsSvc())
	dir := t.TempDir()

	svc, err := NewThumbnailsService(ThumbnailsConfig{}, factory, tel)
	require.NoError(t, err)
	assert.Empty(t, svc.InputRoot())
	assert.Empty(t, svc.OutputRoot())

	require.NoError(t, svc.SetInputRoot(dir))
	require.NoError(t, svc.SetOutputRoot(dir))
	assert.Equal(t, dir, svc.InputRoot())
	assert.Equal(t, dir, svc.OutputRoot())

	err = svc.SetInputRoot(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	filePath := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))
	assert.ErrorIs(t, svc.SetOutputRoot(filePath), apperrors.ErrInvalidArgument)

	_, err = NewThumbnailsService(
		ThumbnailsConfig{DirThumbnailsRoot: filepath.Join(dir, "missing")},
		factory,
		tel,
	)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestCreateThumbnail_ResizesWithAspectRatioLock(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	tests := []struct {
		name          string
		opts          []configOpt
		width, height int
	}{
		{"width only", []configOpt{withWidth(200)}, 200, 100},
		{"height only", []configOpt{withHeight(100)}, 200, 100},
		{"both", []configOpt{withWidth(100), withHeight(300)}, 100, 300},
		{"nothing", nil, 400, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t, "landscape.jpg", tt.opts...)
			result := f.create(t, cfg)

			format, w, h := dimensions(t, result.Path)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestCreateThumbnail_ExplicitOutputName(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	cfg := newConfig(t, "landscape.jpg", withWidth(200))
	require.NoError(t, cfg.SetOutputRef("thumbnail.jpg"))

	result := f.create(t, cfg)
	assert.Equal(t, "thumbnail.jpg", result.Filename)
	assert.Equal(t, filepath.Join(f.thumbnails, "thumbnail.jpg"), result.Path)
	assert.FileExists(t, result.Path)
}

func TestCreateThumbnail_GeneratedName(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	cfg := newConfig(t, "landscape.jpg", withWidth(100), withHeight(300))
	result := f.create(t, cfg)

	assert.Equal(t, "thumb-"+cfg.ContentHash()+".jpg", result.Filename)
	assert.FileExists(t, result.Path)
}

func TestCreateThumbnail_SizeConstraint(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)
	f.writeImage(t, "portrait.jpg", 200, 400)
	f.writeImage(t, "square.jpg", 400, 400)

	tests := []struct {
		input         string
		opts          []configOpt
		width, height int
	}{
		{"landscape.jpg", []configOpt{withConstraint(200)}, 200, 100},
		{"portrait.jpg", []configOpt{withConstraint(200)}, 100, 200},
		{"square.jpg", []configOpt{withConstraint(200)}, 200, 200},
		// The constraint wins over a lone dimension
		{"landscape.jpg", []configOpt{withConstraint(200), withHeight(150)}, 200, 100},
		// Both dimensions win over the constraint
		{"landscape.jpg", []configOpt{withConstraint(200), withWidth(50), withHeight(60)}, 50, 60},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := f.create(t, newConfig(t, tt.input, tt.opts...))

			_, w, h := dimensions(t, result.Path)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestCreateThumbnail_WithoutAspectRatioLock(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	cfg := newConfig(t, "landscape.jpg", withWidth(300))
	cfg.SetAspectRatioLock(false)
	result := f.create(t, cfg)

	_, w, h := dimensions(t, result.Path)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestCreateThumbnail_Crop(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.png", 400, 200)

	tests := []struct {
		name          string
		opts          []configOpt
		width, height int
	}{
		{"both", []configOpt{withWidth(100), withHeight(100)}, 100, 100},
		{"width only", []configOpt{withWidth(100)}, 100, 200},
		{"height only", []configOpt{withHeight(50)}, 400, 50},
		{"neither", nil, 400, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t, "landscape.png", tt.opts...)
			cfg.SetCrop(true)
			result := f.create(t, cfg)

			_, w, h := dimensions(t, result.Path)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestCreateThumbnail_Mount(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)
	f.writeImage(t, "portrait.jpg", 200, 400)
	f.writeImage(t, "square.jpg", 300, 300)

	tests := []struct {
		name          string
		input         string
		opts          []configOpt
		width, height int
	}{
		{"explicit", "landscape.jpg", []configOpt{withMount(600, 400)}, 600, 400},
		{"landscape default", "landscape.jpg", []configOpt{withWidth(200), withMount(0, 0)}, 200, 200},
		{"portrait default", "portrait.jpg", []configOpt{withMount(0, 0)}, 400, 400},
		{"square default", "square.jpg", []configOpt{withMount(0, 0)}, 300, 300},
		{"width only", "landscape.jpg", []configOpt{withMount(500, 0)}, 500, 200},
		{"height only", "landscape.jpg", []configOpt{withMount(0, 300)}, 400, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.create(t, newConfig(t, tt.input, tt.opts...))

			_, w, h := dimensions(t, result.Path)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestCreateThumbnail_MountSmallerThanImageFails(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	_, err := f.svc.CreateThumbnail(newConfig(t, "landscape.jpg", withMount(100, 100)))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestCreateThumbnail_ConvertsEncoding(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 400, 200)

	for _, enc := range raster.Encodings {
		t.Run(enc.String(), func(t *testing.T) {
			cfg := newConfig(t, "landscape.jpg", withWidth(100))
			require.NoError(t, cfg.SetOutputEncoding(enc))
			require.NoError(t, cfg.SetQuality(70))

			result := f.create(t, cfg)
			assert.Equal(t, enc.Extension(), filepath.Ext(result.Filename))

			format, w, h := dimensions(t, result.Path)
			assert.Equal(t, enc.String(), format)
			assert.Equal(t, 100, w)
			assert.Equal(t, 50, h)
		})
	}
}

func TestCreateThumbnail_InputResolution(t *testing.T) {
	f := newFixture(t)
	absPath := f.writeImage(t, "landscape.gif", 40, 20)

	// Explicit path
	result := f.create(t, newConfig(t, absPath, withWidth(20)))
	assert.Equal(t, ".gif", filepath.Ext(result.Filename))

	// Relative to the originals root
	result = f.create(t, newConfig(t, "landscape.gif", withWidth(20)))
	assert.FileExists(t, result.Path)

	_, err := f.svc.CreateThumbnail(newConfig(t, "missing.jpg"))
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.CreateThumbnail(models.NewThumbConfig())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.svc.CreateThumbnail(nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestCreateThumbnail_OutputRootNotSet(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	svc, err := NewThumbnailsService(
		ThumbnailsConfig{DirOriginalsRoot: f.originals},
		thumbsgen.NewFactory(raster.NewNativeBackend()),
		telemetry.NewTelemetrySvcWith(metrics.NewNoopMetricsSvc()),
	)
	require.NoError(t, err)

	_, err = svc.CreateThumbnail(newConfig(t, "landscape.jpg"))
	assert.ErrorIs(t, err, apperrors.ErrOutputRootNotSet)
}

func TestCreateThumbnail_UnsupportedSource(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "image.bmp", 40, 20)
	require.NoError(t, os.WriteFile(filepath.Join(f.originals, "notes.txt"), []byte("hello"), 0o644))

	_, err := f.svc.CreateThumbnail(newConfig(t, "image.bmp"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedEncoding)

	_, err = f.svc.CreateThumbnail(newConfig(t, "notes.txt"))
	assert.ErrorIs(t, err, apperrors.ErrUnparsableImage)
}

func TestCreateThumbnail_WriteFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	// A regular file where a directory is expected
	require.NoError(t, os.WriteFile(filepath.Join(f.thumbnails, "blocker"), []byte("x"), 0o644))

	cfg := newConfig(t, "landscape.jpg", withWidth(20))
	require.NoError(t, cfg.SetOutputRef(filepath.Join("blocker", "thumb.jpg")))

	result, err := f.svc.CreateThumbnail(cfg)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Error(t, result.WriteErr)
	assert.Equal(t, 1, f.metrics.Count(metrics.ThumbWriteFailed))
	assert.Zero(t, f.metrics.Count(metrics.ThumbCreated))
}

func TestCreateThumbnail_WritesIntoSubdirectories(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	cfg := newConfig(t, "landscape.jpg")
	require.NoError(t, cfg.SetOutputRef(filepath.Join("albums", "2024", "thumb.jpg")))

	result := f.create(t, cfg)
	assert.FileExists(t, filepath.Join(f.thumbnails, "albums", "2024", "thumb.jpg"))
	assert.Equal(t, 1, f.metrics.Count(metrics.ThumbCreated))
	assert.False(t, result.Cached)
}

func TestCreateThumbnail_Caching(t *testing.T) {
	f := newFixture(t)
	source := f.writeImage(t, "landscape.jpg", 400, 200)

	cfg := newConfig(t, "landscape.jpg", withWidth(200))
	cfg.SetCachingEnabled(true)

	first := f.create(t, cfg)
	assert.False(t, first.Cached)

	// Pin times so the comparison does not depend on clock resolution
	now := time.Now()
	thumbTime := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(source, now.Add(-3*time.Hour), now.Add(-3*time.Hour)))
	require.NoError(t, os.Chtimes(first.Path, thumbTime, thumbTime))

	second := f.create(t, cfg)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Filename, second.Filename)
	assertModTime(t, first.Path, thumbTime)
	assert.Equal(t, 1, f.metrics.Count(metrics.ThumbCacheHit))

	// Source touched to a strictly newer time
	require.NoError(t, os.Chtimes(source, now.Add(-time.Hour), now.Add(-time.Hour)))

	third := f.create(t, cfg)
	assert.False(t, third.Cached)
	assert.Equal(t, first.Filename, third.Filename)

	info, err := os.Stat(third.Path)
	require.NoError(t, err)
	assert.False(t, info.ModTime().Equal(thumbTime))
}

func TestCreateThumbnail_CachingRequiresStrictlyNewerThumbnail(t *testing.T) {
	f := newFixture(t)
	source := f.writeImage(t, "landscape.jpg", 40, 20)

	cfg := newConfig(t, "landscape.jpg")
	cfg.SetCachingEnabled(true)
	first := f.create(t, cfg)

	same := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(source, same, same))
	require.NoError(t, os.Chtimes(first.Path, same, same))

	second := f.create(t, cfg)
	assert.False(t, second.Cached)
}

func TestCreateThumbnail_WithoutCachingAlwaysRegenerates(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	cfg := newConfig(t, "landscape.jpg")
	first := f.create(t, cfg)

	past := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(first.Path, past, past))

	second := f.create(t, cfg)
	assert.False(t, second.Cached)

	info, err := os.Stat(second.Path)
	require.NoError(t, err)
	assert.False(t, info.ModTime().Equal(past))
}

func TestResolveOutputName(t *testing.T) {
	f := newFixture(t)

	cfg := newConfig(t, "photos/cat.jpeg", withWidth(200))
	name := f.svc.ResolveOutputName(cfg)
	assert.Equal(t, name, f.svc.ResolveOutputName(cfg))
	assert.Equal(t, name, f.svc.ResolveOutputName(newConfig(t, "photos/cat.jpeg", withWidth(200))))
	assert.Regexp(t, `^thumb-[0-9a-f]{32}\.jpeg$`, name)

	assert.NotEqual(t, name, f.svc.ResolveOutputName(newConfig(t, "photos/cat.jpeg", withWidth(201))))

	noExt := newConfig(t, "cat")
	assert.Regexp(t, `^thumb-[0-9a-f]{32}$`, f.svc.ResolveOutputName(noExt))

	withEnc := newConfig(t, "cat.jpeg")
	require.NoError(t, withEnc.SetOutputEncoding(raster.EncodingGIF))
	assert.Regexp(t, `\.gif$`, f.svc.ResolveOutputName(withEnc))

	explicit := newConfig(t, "cat.jpeg")
	require.NoError(t, explicit.SetOutputRef("mine.png"))
	assert.Equal(t, "mine.png", f.svc.ResolveOutputName(explicit))
}

func TestDeleteThumbnail(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	cfg := newConfig(t, "landscape.jpg", withWidth(20))
	result := f.create(t, cfg)
	require.FileExists(t, result.Path)

	name, err := f.svc.DeleteThumbnail(cfg)
	require.NoError(t, err)
	assert.Equal(t, result.Filename, name)
	assert.NoFileExists(t, result.Path)
	assert.Equal(t, 1, f.metrics.Count(metrics.ThumbDeleted))

	// Already gone
	_, err = f.svc.DeleteThumbnail(cfg)
	assert.NoError(t, err)
}

func TestThumbnails_OutputRefCannotLeaveRoot(t *testing.T) {
	f := newFixture(t)
	f.writeImage(t, "landscape.jpg", 40, 20)

	victim := filepath.Join(filepath.Dir(f.thumbnails), "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("keep"), 0o644))

	cfg := newConfig(t, "landscape.jpg")
	rel, err := filepath.Rel(f.thumbnails, victim)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.SetOutputRef(rel), apperrors.ErrInvalidArgument)
	assert.ErrorIs(t, cfg.SetOutputRef(victim), apperrors.ErrInvalidArgument)

	// The rejected ref leaves the derived name in place
	result := f.create(t, cfg)
	assert.Equal(t, f.thumbnails, filepath.Dir(result.Path))

	_, err = f.svc.DeleteThumbnail(cfg)
	require.NoError(t, err)
	assert.FileExists(t, victim)
	assert.NoFileExists(t, result.Path)
}

func TestResolveOutputName_ExtensionComesFromFilename(t *testing.T) {
	f := newFixture(t)

	tests := map[string]string{
		"photos.v2/cat":      "",
		"photos.v2/cat.png":  ".png",
		"archive.tar.gif":    ".gif",
		"/abs/dir.d/cat.jpg": ".jpg",
	}

	for input, ext := range tests {
		name := f.svc.ResolveOutputName(newConfig(t, input))
		assert.Equal(t, ext, filepath.Ext(name), input)
		assert.True(t, filepath.IsLocal(name), name)
		assert.NotContains(t, name, "/", input)
	}
}

func assertModTime(t *testing.T, path string, want time.Time) {
	t.Helper()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(want), "mod time %v, want %v", info.ModTime(), want)
}
