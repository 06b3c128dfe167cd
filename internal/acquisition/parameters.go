package acquisition

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schote/spectrum-console/internal/unroll"
)

// Parameters is the immutable acquisition parameter record (spec.md §4.H).
// Update returns a modified copy; Hash gives a stable content hash the
// Controller uses to decide whether the cached Unrolled-Sequence is stale.
type Parameters struct {
	LarmorFrequency float64
	B1Scaling       float64
	FOVOffset       unroll.Dimensions
	FOVScaling      unroll.Dimensions
	GradientOffset  unroll.Dimensions
	ADCSamples      int
	Decimation      int
	NumAverages     int
	AveragingDelay  time.Duration
}

// canonical is the JSON-serializable shape used for hashing, with explicit
// field order independent of Go struct tag/field ordering changes.
type canonical struct {
	LarmorFrequency float64 `json:"larmor_frequency"`
	B1Scaling       float64 `json:"b1_scaling"`
	FOVOffsetX      float64 `json:"fov_offset_x"`
	FOVOffsetY      float64 `json:"fov_offset_y"`
	FOVOffsetZ      float64 `json:"fov_offset_z"`
	FOVScalingX     float64 `json:"fov_scaling_x"`
	FOVScalingY     float64 `json:"fov_scaling_y"`
	FOVScalingZ     float64 `json:"fov_scaling_z"`
	GradOffsetX     float64 `json:"gradient_offset_x"`
	GradOffsetY     float64 `json:"gradient_offset_y"`
	GradOffsetZ     float64 `json:"gradient_offset_z"`
	ADCSamples      int     `json:"adc_samples"`
	Decimation      int     `json:"decimation"`
	NumAverages     int     `json:"num_averages"`
	AveragingDelay  int64   `json:"averaging_delay_ns"`
}

// Update returns a copy of p with fn applied, leaving p untouched.
func (p Parameters) Update(fn func(*Parameters)) Parameters {
	next := p
	fn(&next)
	return next
}

// Hash returns a stable content hash over every field (spec.md §4.H),
// suitable for the Controller's re-unroll trigger and for naming session
// directories.
func (p Parameters) Hash() (string, error) {
	c := canonical{
		LarmorFrequency: p.LarmorFrequency,
		B1Scaling:       p.B1Scaling,
		FOVOffsetX:      p.FOVOffset.X,
		FOVOffsetY:      p.FOVOffset.Y,
		FOVOffsetZ:      p.FOVOffset.Z,
		FOVScalingX:     p.FOVScaling.X,
		FOVScalingY:     p.FOVScaling.Y,
		FOVScalingZ:     p.FOVScaling.Z,
		GradOffsetX:     p.GradientOffset.X,
		GradOffsetY:     p.GradientOffset.Y,
		GradOffsetZ:     p.GradientOffset.Z,
		ADCSamples:      p.ADCSamples,
		Decimation:      p.Decimation,
		NumAverages:     p.NumAverages,
		AveragingDelay:  int64(p.AveragingDelay),
	}
	encoded, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("acquisition: hash parameters: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("%x", sum), nil
}
