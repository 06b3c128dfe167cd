package ddc

import (
	"math"
	"testing"

	"github.com/schote/spectrum-console/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeGate(ro, coils int, refBit uint16, value int16) device.RawGate {
	samples := make([][]int16, coils)
	for c := range samples {
		row := make([]int16, ro)
		for r := range row {
			v := uint16(value) & 0x7fff
			v |= refBit << 15
			row[r] = int16(v)
		}
		samples[c] = row
	}
	return device.RawGate{Coils: coils, Samples: samples}
}

func TestGroupByLength(t *testing.T) {
	gates := []device.RawGate{
		makeGate(8, 1, 0, 0),
		makeGate(16, 1, 0, 0),
		makeGate(8, 1, 0, 0),
	}
	order, grouped := groupByLength(gates)
	require.Equal(t, []int{8, 16}, order)
	assert.Len(t, grouped[8], 2)
	assert.Len(t, grouped[16], 1)
}

func TestProcessOnResonanceZeroReferencePhaseIsReal(t *testing.T) {
	ro := 32
	gates := []device.RawGate{makeGate(ro, 2, 1, 1000)}

	params := Params{
		Larmor:       0, // on-resonance: no demodulation rotation
		Decimation:   1,
		SampleRate:   1,
		ChannelScale: []float64{1, 1},
	}

	buckets, err := Process(gates, params, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	bucket := buckets[ro]
	require.Len(t, bucket.Raw, 1)

	slab := bucket.Raw[0]
	// Reference coil was dropped: only the 2 signal coils remain.
	assert.Equal(t, 2, slab.Coils)
	for c := 0; c < slab.Coils; c++ {
		for r := 0; r < slab.RO; r++ {
			v := slab.at(c, 0, r)
			assert.InDelta(t, 0, math.Abs(imag(v)), 1e-6, "expected real-valued output at on-resonance zero reference phase")
		}
	}
}

func TestDecimateIdentityWhenFactorOne(t *testing.T) {
	in := newSlab(1, 1, 4)
	for r := 0; r < 4; r++ {
		in.set(0, 0, r, complex(float64(r), 0))
	}
	out := decimate(in, 1)
	assert.Equal(t, in.Data, out.Data)
}

func TestDecimateShrinksReadoutByFactor(t *testing.T) {
	in := newSlab(1, 1, 16)
	for r := 0; r < 16; r++ {
		in.set(0, 0, r, complex(1, 0))
	}
	out := decimate(in, 4)
	assert.Equal(t, 4, out.RO)
}

func TestBuildUnprocessedSlabStripsReferenceBit(t *testing.T) {
	gates := []device.RawGate{makeGate(4, 1, 1, 100)}
	params := Params{ChannelScale: []float64{2}}
	slab := buildUnprocessedSlab(gates, params)

	require.Equal(t, 2, slab.Coils) // 1 signal coil + reference
	for r := 0; r < 4; r++ {
		// Bits 14..0 hold 100; shifting the reference bit out gives 200,
		// which the channel scale of 2 turns into 400.
		assert.Equal(t, complex(400, 0), slab.at(0, 0, r))
		assert.Equal(t, complex(1, 0), slab.at(1, 0, r))
	}
}
