package dsp

import (
	"fmt"
	"math"
)

const (
	// Int16Max is the positive saturation limit used throughout the
	// unroller and DDC pipeline for float<->int16 scaling.
	Int16Max = float64(math.MaxInt16)
	// Int16Min is the negative saturation limit.
	Int16Min = float64(math.MinInt16)
)

// SaturateInt16 converts x to int16, rounding to nearest. Callers are
// expected to have already clamped x to the legal output range (the
// unroller's amplitude limit checks); this
// function asserts that invariant rather than silently wrapping, matching
// spec.md §4.B: "the unroller must have already clamped; the cast asserts".
func SaturateInt16(x float64) (int16, error) {
	rounded := math.Round(x)
	if rounded > Int16Max || rounded < Int16Min {
		return 0, fmt.Errorf("dsp: value %g exceeds int16 range after rounding (got %g)", x, rounded)
	}
	return int16(rounded), nil
}

// MustSaturateInt16 is SaturateInt16 for call sites that have already
// validated the bound and want to keep arithmetic expressions terse.
func MustSaturateInt16(x float64) int16 {
	v, err := SaturateInt16(x)
	if err != nil {
		panic(err)
	}
	return v
}
