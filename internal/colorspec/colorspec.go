// Package colorspec normalizes heterogeneous color inputs into a canonical
// four channel value.
//
// The fourth channel is kept as the literal value supplied by the caller.
// By convention 0 means opaque; string inputs always yield 0. No conversion
// to a conventional alpha scale happens here, the raster backend decides how
// to interpret it.
package colorspec

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/giobyte8/thumbforge/internal/apperrors"
)

// Color holds R, G, B and A channels in that order.
type Color [4]uint8

// White is the default mount background.
var White = Color{255, 255, 255, 0}

var hexColorRe = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

func (c Color) R() uint8 { return c[0] }
func (c Color) G() uint8 { return c[1] }
func (c Color) B() uint8 { return c[2] }
func (c Color) A() uint8 { return c[3] }

func (c Color) String() string {
	return fmt.Sprintf("rgba(%d,%d,%d,%d)", c[0], c[1], c[2], c[3])
}

// Parse accepts a Color, an ordered sequence of 3 or 4 channel values or a
// 6 digit hex string with an optional leading '#'.
func Parse(input any) (Color, error) {
	switch v := input.(type) {
	case Color:
		return v, nil
	case string:
		return parseHex(v)
	case []int:
		return fromInts(v)
	case [3]int:
		return fromInts(v[:])
	case [4]int:
		return fromInts(v[:])
	case []uint8:
		ints := make([]int, len(v))
		for i, b := range v {
			ints[i] = int(b)
		}
		return fromInts(ints)
	case []any:
		return fromAny(v)
	default:
		return Color{}, fmt.Errorf(
			"%w: unsupported color value of type %T",
			apperrors.ErrInvalidColor,
			input,
		)
	}
}

func parseHex(s string) (Color, error) {
	if len(s) > 7 {
		s = s[:7]
	}
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}

	if !hexColorRe.MatchString(s) {
		return Color{}, fmt.Errorf(
			"%w: %q is not a hexadecimal color",
			apperrors.ErrInvalidColor,
			s,
		)
	}

	// Six hex digits always fit in 24 bits
	n, _ := strconv.ParseUint(s, 16, 32)
	return Color{
		uint8(0xFF & (n >> 16)),
		uint8(0xFF & (n >> 8)),
		uint8(0xFF & n),
		0,
	}, nil
}

func fromInts(values []int) (Color, error) {
	if len(values) < 3 || len(values) > 4 {
		return Color{}, fmt.Errorf(
			"%w: expected 3 or 4 channels, got %d",
			apperrors.ErrInvalidColor,
			len(values),
		)
	}

	var c Color
	for i, v := range values {
		if v < 0 || v > 255 {
			return Color{}, fmt.Errorf(
				"%w: channel %d out of range: %d",
				apperrors.ErrInvalidColor,
				i,
				v,
			)
		}
		c[i] = uint8(v)
	}

	return c, nil
}

// fromAny handles sequences produced by JSON and YAML decoders.
func fromAny(values []any) (Color, error) {
	ints := make([]int, 0, len(values))
	for i, v := range values {
		switch n := v.(type) {
		case int:
			ints = append(ints, n)
		case int64:
			ints = append(ints, int(n))
		case uint64:
			ints = append(ints, int(n))
		case float64:
			if n != float64(int(n)) {
				return Color{}, fmt.Errorf(
					"%w: channel %d is not an integer: %v",
					apperrors.ErrInvalidColor,
					i,
					n,
				)
			}
			ints = append(ints, int(n))
		default:
			return Color{}, fmt.Errorf(
				"%w: channel %d has unsupported type %T",
				apperrors.ErrInvalidColor,
				i,
				v,
			)
		}
	}

	return fromInts(ints)
}
