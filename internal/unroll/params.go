package unroll

import "time"

// Dimensions is a small per-axis (x, y, z) value, used for FOV scaling and
// gradient DC offsets.
type Dimensions struct {
	X, Y, Z float64
}

// Get returns the component for the given axis.
func (d Dimensions) Get(axis int) float64 {
	switch axis {
	case 0:
		return d.X
	case 1:
		return d.Y
	default:
		return d.Z
	}
}

// System holds the fixed hardware/system settings that apply regardless of
// acquisition parameters (spec.md §4.C: "system.rf_dead_time",
// "system.rf_ringdown_time").
type System struct {
	RFDeadTime     time.Duration
	RFRingdownTime time.Duration
}

// Params is everything the unroller needs beyond the block source itself.
// It is a narrower view over acquisition.Parameters plus static device
// calibration, kept in its own package to avoid an import cycle between
// internal/unroll and internal/acquisition (the Controller builds a Params
// value from its Parameters + calibration on each unroll).
type Params struct {
	Larmor     float64 // Hz
	B1Scaling  float64
	FOVScaling Dimensions
	// GradientOffset is in mV, added as a DC bias to every block on every
	// gradient channel (spec.md §4.C step 2).
	GradientOffset Dimensions

	// OutputLimits[0] is the RF channel's limit in mV; [1..3] are
	// GX/GY/GZ. All four must be set (spec.md §4.C precondition).
	OutputLimits [4]float64

	// GPAGain and GradientEfficiency are indexed like OutputLimits: index
	// 0 is unused (RF has no GPA), 1..3 correspond to GX/GY/GZ, matching
	// spec.md §4.C's "idx = 1 + channel_index(x|y|z)" indexing scheme.
	GPAGain            [4]float64
	GradientEfficiency [4]float64

	RFToMillivolt float64
	SpcmDwellTime time.Duration
	System        System
}

// gyromagneticRatio is gamma in Hz/mT, used for the Hz/m -> mV/m gradient
// scaling per spec.md §4.C step 5.
const gyromagneticRatio = 42.58e3

// validate checks the preconditions of spec.md §4.C.
func (p Params) validate() error {
	if p.Larmor > 10e6 {
		return ErrOutOfRange
	}
	for _, v := range p.OutputLimits {
		if v == 0 {
			return ErrMissingCalibration
		}
	}
	if abs(p.GradientOffset.X) > p.OutputLimits[1] ||
		abs(p.GradientOffset.Y) > p.OutputLimits[2] ||
		abs(p.GradientOffset.Z) > p.OutputLimits[3] {
		return ErrOutOfRange
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
