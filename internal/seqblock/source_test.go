package seqblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBlocksRoundTrip(t *testing.T) {
	blocks := []Block{
		{Duration: time.Microsecond},
		{Duration: 2 * time.Microsecond, ADC: &ADCEvent{NumSamples: 4}},
	}
	src := FromBlocks("demo", blocks)

	assert.Equal(t, "demo", src.Name())
	require.Equal(t, 2, src.NumBlocks())

	b0, err := src.BlockAt(0)
	require.NoError(t, err)
	assert.Equal(t, time.Microsecond, b0.Duration)

	b1, err := src.BlockAt(1)
	require.NoError(t, err)
	require.NotNil(t, b1.ADC)
	assert.Equal(t, 4, b1.ADC.NumSamples)
}

func TestFromBlocksOutOfRange(t *testing.T) {
	src := FromBlocks("demo", []Block{{Duration: time.Microsecond}})
	_, err := src.BlockAt(1)
	assert.Error(t, err)
	_, err = src.BlockAt(-1)
	assert.Error(t, err)
}

func TestFromBlocksCopiesInput(t *testing.T) {
	blocks := []Block{{Duration: time.Microsecond}}
	src := FromBlocks("demo", blocks)
	blocks[0].Duration = time.Hour

	b0, err := src.BlockAt(0)
	require.NoError(t, err)
	assert.Equal(t, time.Microsecond, b0.Duration)
}

func TestBlockGradientByAxis(t *testing.T) {
	gx := &GradientEvent{Axis: AxisX}
	b := Block{GX: gx}
	assert.Same(t, gx, b.Gradient(AxisX))
	assert.Nil(t, b.Gradient(AxisY))
}

func TestAxisString(t *testing.T) {
	assert.Equal(t, "x", AxisX.String())
	assert.Equal(t, "y", AxisY.String())
	assert.Equal(t, "z", AxisZ.String())
}
