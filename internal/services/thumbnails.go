package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/giobyte8/thumbforge/internal/apperrors"
	"github.com/giobyte8/thumbforge/internal/models"
	"github.com/giobyte8/thumbforge/internal/telemetry"
	"github.com/giobyte8/thumbforge/internal/telemetry/metrics"
	thumbsgen "github.com/giobyte8/thumbforge/internal/thumbs_gen"
)

type ThumbnailsConfig struct {
	// Directory input refs are resolved against when they are not
	// usable as given. Optional.
	DirOriginalsRoot string

	// Directory thumbnails are written to. Required before any
	// thumbnail is created.
	DirThumbnailsRoot string
}

// ThumbnailResult describes the outcome of a CreateThumbnail call that got
// as far as the final write.
type ThumbnailResult struct {
	// Thumbnail filename relative to the thumbnails root.
	Filename string

	// Absolute or root relative path of the thumbnail file.
	Path string

	// An existing fresh thumbnail was reused.
	Cached bool

	// Error returned by the final encode/write step, if any.
	WriteErr error
}

// OK reports whether the thumbnail is available at Path.
func (r ThumbnailResult) OK() bool {
	return r.WriteErr == nil
}

type ThumbnailsService struct {
	config    ThumbnailsConfig
	factory   *thumbsgen.Factory
	telemetry *telemetry.TelemetrySvc
}

// NewThumbnailsService validates the non empty roots of config.
func NewThumbnailsService(
	config ThumbnailsConfig,
	factory *thumbsgen.Factory,
	telemetry *telemetry.TelemetrySvc,
) (*ThumbnailsService, error) {
	s := &ThumbnailsService{
		factory:   factory,
		telemetry: telemetry,
	}

	if config.DirOriginalsRoot != "" {
		if err := s.SetInputRoot(config.DirOriginalsRoot); err != nil {
			return nil, err
		}
	}
	if config.DirThumbnailsRoot != "" {
		if err := s.SetOutputRoot(config.DirThumbnailsRoot); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *ThumbnailsService) InputRoot() string {
	return s.config.DirOriginalsRoot
}

func (s *ThumbnailsService) OutputRoot() string {
	return s.config.DirThumbnailsRoot
}

// SetInputRoot sets the directory input refs are resolved against.
func (s *ThumbnailsService) SetInputRoot(dir string) error {
	if err := checkDir(dir); err != nil {
		return err
	}

	s.config.DirOriginalsRoot = dir
	return nil
}

// SetOutputRoot sets the directory thumbnails are written to. It must be
// writable.
func (s *ThumbnailsService) SetOutputRoot(dir string) error {
	if err := checkDir(dir); err != nil {
		return err
	}

	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf(
			"%w: the destination directory is not writable at %s: %v",
			apperrors.ErrInvalidArgument,
			dir,
			err,
		)
	}

	s.config.DirThumbnailsRoot = dir
	return nil
}

// CreateThumbnail produces the thumbnail described by cfg.
//
// Errors are returned for every failure up to the final write. A failed
// write is reported through ThumbnailResult.WriteErr instead.
//
// The freshness check and the write are not atomic. Callers must not run
// two calls resolving to the same thumbnail concurrently.
func (s *ThumbnailsService) CreateThumbnail(
	cfg *models.ThumbConfig,
) (ThumbnailResult, error) {
	if cfg == nil {
		return ThumbnailResult{}, fmt.Errorf(
			"%w: nil thumbnail config",
			apperrors.ErrInvalidArgument,
		)
	}

	inputPath, err := s.resolveInputPath(cfg)
	if err != nil {
		return ThumbnailResult{}, err
	}

	if s.config.DirThumbnailsRoot == "" {
		return ThumbnailResult{}, apperrors.ErrOutputRootNotSet
	}

	img, err := s.factory.FromSource(inputPath)
	if err != nil {
		return ThumbnailResult{}, err
	}

	filename := s.ResolveOutputName(cfg)
	thumbPath, err := s.thumbnailPath(filename)
	if err != nil {
		return ThumbnailResult{}, err
	}
	result := ThumbnailResult{
		Filename: filename,
		Path:     thumbPath,
	}

	slog.Debug(
		"Creating thumbnail",
		"input", inputPath,
		"thumbnail", result.Path,
		"source", img.Summary(),
	)

	if cfg.CachingEnabled() && thumbnailIsFresh(inputPath, result.Path) {
		slog.Debug("Thumbnail is fresh, skipping", "thumbnail", result.Path)
		result.Cached = true
		s.telemetry.Metrics().Increment(
			metrics.ThumbCacheHit,
			map[string]string{"filePath": cfg.InputRef()},
		)
		return result, nil
	}

	if cfg.Crop() {
		img, err = cropThumbnail(img, cfg)
	} else {
		img, err = resizeThumbnail(img, cfg)
	}
	if err != nil {
		return ThumbnailResult{}, err
	}

	img, err = mountThumbnail(img, cfg)
	if err != nil {
		return ThumbnailResult{}, err
	}

	if err := writeThumbnail(img, result.Path, cfg); err != nil {
		slog.Error(
			"Failed to write thumbnail",
			"thumbnail", result.Path,
			"error", err,
		)
		s.telemetry.Metrics().Increment(
			metrics.ThumbWriteFailed,
			map[string]string{"filePath": cfg.InputRef()},
		)
		result.WriteErr = err
		return result, nil
	}

	s.telemetry.Metrics().Increment(
		metrics.ThumbCreated,
		map[string]string{
			"filePath":    cfg.InputRef(),
			"thumbWidth":  fmt.Sprintf("%d", img.Width()),
			"thumbHeight": fmt.Sprintf("%d", img.Height()),
			"encoding":    outputEncodingName(img, cfg),
		},
	)
	slog.Info(
		"Thumbnail created",
		"thumbnail", result.Path,
		"width", img.Width(),
		"height", img.Height(),
	)

	return result, nil
}

// DeleteThumbnail removes the thumbnail cfg resolves to. A missing
// thumbnail is not an error.
func (s *ThumbnailsService) DeleteThumbnail(cfg *models.ThumbConfig) (string, error) {
	if s.config.DirThumbnailsRoot == "" {
		return "", apperrors.ErrOutputRootNotSet
	}

	if cfg == nil {
		return "", fmt.Errorf(
			"%w: nil thumbnail config",
			apperrors.ErrInvalidArgument,
		)
	}

	filename := s.ResolveOutputName(cfg)
	thumbPath, err := s.thumbnailPath(filename)
	if err != nil {
		return "", err
	}

	slog.Debug("Removing thumbnail", "path", thumbPath)
	if err := os.Remove(thumbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filename, nil
		}
		return "", fmt.Errorf(
			"failed to remove thumbnail %s: %w",
			thumbPath,
			err,
		)
	}

	s.telemetry.Metrics().Increment(
		metrics.ThumbDeleted,
		map[string]string{"filePath": cfg.InputRef()},
	)
	return filename, nil
}

// ResolveOutputName returns the configured output ref, or a filename
// derived from the whole configuration.
func (s *ThumbnailsService) ResolveOutputName(cfg *models.ThumbConfig) string {
	if cfg.OutputRef() != "" {
		return cfg.OutputRef()
	}

	return fmt.Sprintf("thumb-%s%s", cfg.ContentHash(), thumbnailExtension(cfg))
}

// thumbnailPath joins filename to the thumbnails root. Filenames that
// would land outside the root are rejected.
func (s *ThumbnailsService) thumbnailPath(filename string) (string, error) {
	if !filepath.IsLocal(filename) {
		return "", fmt.Errorf(
			"%w: thumbnail filename escapes the thumbnails root: %q",
			apperrors.ErrInvalidArgument,
			filename,
		)
	}

	return filepath.Join(s.config.DirThumbnailsRoot, filename), nil
}

func (s *ThumbnailsService) resolveInputPath(cfg *models.ThumbConfig) (string, error) {
	inputRef := cfg.InputRef()
	if inputRef == "" {
		return "", fmt.Errorf(
			"%w: expected an input filename",
			apperrors.ErrInvalidArgument,
		)
	}

	// The ref may be an explicit path
	if isReadableFile(inputRef) {
		return inputRef, nil
	}

	if s.config.DirOriginalsRoot != "" {
		inputPath := filepath.Join(s.config.DirOriginalsRoot, inputRef)
		if isReadableFile(inputPath) {
			return inputPath, nil
		}
	}

	return "", fmt.Errorf("%w: %s", apperrors.ErrInputNotFound, inputRef)
}

// thumbnailExtension uses the output encoding when one is configured,
// otherwise the extension of the input ref's file name. Dots in directory
// names are ignored.
func thumbnailExtension(cfg *models.ThumbConfig) string {
	if enc := cfg.OutputEncoding(); enc.Valid() {
		return enc.Extension()
	}

	return filepath.Ext(cfg.InputRef())
}

func resizeThumbnail(
	img *thumbsgen.Decorator,
	cfg *models.ThumbConfig,
) (*thumbsgen.Decorator, error) {
	width := cfg.Width()
	height := cfg.Height()
	constraint := cfg.SizeConstraint()

	if width == 0 && height == 0 && constraint == 0 {
		return img, nil
	}

	if width != 0 && height != 0 {
		return img.Resize(width, height, false)
	}

	aspectRatioLock := cfg.AspectRatioLock()

	// The longest edge gets the constraint
	if constraint != 0 {
		switch img.Orientation() {
		case thumbsgen.Landscape:
			width, height = constraint, 0
			aspectRatioLock = true
		case thumbsgen.Portrait:
			width, height = 0, constraint
			aspectRatioLock = true
		default:
			width, height = constraint, constraint
		}
	}

	if aspectRatioLock {
		if height != 0 {
			width = thumbsgen.ProportionalSize(height, img.Height(), img.Width())
		} else {
			height = thumbsgen.ProportionalSize(width, img.Width(), img.Height())
		}
	}

	slog.Debug(
		"Resolved thumbnail size",
		"width", width,
		"height", height,
		"aspectRatioLock", aspectRatioLock,
		"constraint", constraint,
	)

	return img.Resize(width, height, false)
}

func cropThumbnail(
	img *thumbsgen.Decorator,
	cfg *models.ThumbConfig,
) (*thumbsgen.Decorator, error) {
	if cfg.Width() == 0 && cfg.Height() == 0 {
		return img, nil
	}

	return img.Crop(cfg.Width(), cfg.Height())
}

func mountThumbnail(
	img *thumbsgen.Decorator,
	cfg *models.ThumbConfig,
) (*thumbsgen.Decorator, error) {
	if !cfg.MountEnabled() {
		return img, nil
	}

	mountWidth := cfg.MountWidth()
	mountHeight := cfg.MountHeight()

	// Without explicit sizes the mount is a square on the longest edge
	if mountWidth == 0 && mountHeight == 0 {
		switch img.Orientation() {
		case thumbsgen.Landscape:
			mountWidth, mountHeight = img.Width(), img.Width()
		case thumbsgen.Portrait:
			mountWidth, mountHeight = img.Height(), img.Height()
		}
	}

	if mountWidth == 0 {
		mountWidth = img.Width()
	}
	if mountHeight == 0 {
		mountHeight = img.Height()
	}

	return img.Mount(mountWidth, mountHeight, cfg.MountColor())
}

func writeThumbnail(
	img *thumbsgen.Decorator,
	thumbPath string,
	cfg *models.ThumbConfig,
) error {
	thumbDir := filepath.Dir(thumbPath)
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return fmt.Errorf(
			"failed to create thumbnails directory %s: %w",
			thumbDir,
			err,
		)
	}

	return img.Output(thumbPath, cfg.OutputEncoding(), cfg.Quality())
}

// thumbnailIsFresh reports whether the thumbnail exists and was modified
// strictly after the original.
func thumbnailIsFresh(inputPath, thumbPath string) bool {
	thumbInfo, err := os.Stat(thumbPath)
	if err != nil {
		return false
	}

	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return false
	}

	return thumbInfo.ModTime().After(inputInfo.ModTime())
}

func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return unix.Access(path, unix.R_OK) == nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf(
			"%w: the given path is not a directory at %s: %w",
			apperrors.ErrInvalidArgument,
			dir,
			apperrors.ErrNotFound,
		)
	}
	if !info.IsDir() {
		return fmt.Errorf(
			"%w: the given path is not a directory at %s",
			apperrors.ErrInvalidArgument,
			dir,
		)
	}

	return nil
}

func outputEncodingName(img *thumbsgen.Decorator, cfg *models.ThumbConfig) string {
	if enc := cfg.OutputEncoding(); enc.Valid() {
		return enc.String()
	}
	return img.Encoding().String()
}
