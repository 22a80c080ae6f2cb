package math

import (
	stdmath "math"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// ScaleDimension scales a pixel dimension, never returning less than one pixel.
func ScaleDimension(size uint32, scale float32) uint32 {
	if scale <= 0 {
		return 1
	}
	scaled := uint32(stdmath.Round(float64(size) * float64(scale)))
	return max(scaled, 1)
}
