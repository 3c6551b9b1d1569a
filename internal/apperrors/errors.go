// Package apperrors holds the sentinel errors shared by every thumbforge
// package. Call sites wrap them with context, callers match with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// Malformed configuration value or violated operation precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// Color input shape or content not recognized.
	ErrInvalidColor = errors.New("invalid color")

	// Referenced file or directory does not exist or is not accessible.
	ErrNotFound = errors.New("not found")

	ErrInputNotFound    = fmt.Errorf("input image %w", ErrNotFound)
	ErrOutputRootNotSet = errors.New("output root directory not set")

	ErrUnparsableImage     = errors.New("unable to parse image data")
	ErrUnsupportedEncoding = errors.New("unsupported image encoding")

	// The rasterization backend is missing at runtime.
	ErrBackendUnavailable = errors.New("rasterization backend unavailable")
)
