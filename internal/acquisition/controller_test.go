package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schote/spectrum-console/internal/device"
	"github.com/schote/spectrum-console/internal/seqblock"
	"github.com/schote/spectrum-console/internal/unroll"
)

func testCalibration() Calibration {
	return Calibration{
		OutputLimits:       [4]float64{5000, 5000, 5000, 5000},
		GPAGain:            [4]float64{0, 1, 1, 1},
		GradientEfficiency: [4]float64{0, 1, 1, 1},
		RFToMillivolt:      1,
		SpcmDwellTime:      50 * time.Nanosecond, // 20 MS/s
		System: unroll.System{
			RFDeadTime:     0,
			RFRingdownTime: 0,
		},
		SampleRate:   20e6,
		ChannelScale: []float64{1},
		StorageRoot:  "",
	}
}

func simpleADCSource() seqblock.Source {
	block := seqblock.Block{
		ADC: &seqblock.ADCEvent{
			Delay:      0,
			NumSamples: 8,
			Dwell:      50 * time.Nanosecond,
		},
		Duration: 400 * time.Nanosecond,
	}
	return seqblock.FromBlocks("test-seq", []seqblock.Block{block})
}

func baseParams() Parameters {
	return Parameters{
		LarmorFrequency: 1e6,
		B1Scaling:       1,
		NumAverages:     2,
		Decimation:      1,
		AveragingDelay:  0,
	}
}

// gateFor builds a fake raw gate with a fixed 8-sample readout, matching
// simpleADCSource's ADC event.
func gateFor() device.RawGate {
	samples := make([]int16, 8)
	return device.RawGate{Coils: 1, Samples: [][]int16{samples}}
}

func TestControllerRunAccumulatesAverages(t *testing.T) {
	fake := device.NewFakeDriver()
	tx := device.NewTX(fake)
	rx := device.NewRX(fake)
	ctrl := NewController(tx, rx, testCalibration())
	ctrl.SetSequence(simpleADCSource())

	params := baseParams()
	_, err := ctrl.ensureUnrolled(simpleADCSource(), params)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Hand over one gate per average: the next gate is queued only after
	// the previous one was captured and RX was restarted (which clears its
	// gate list), so the first average cannot drain every queued gate.
	go func() {
		for i := 0; i < params.NumAverages; i++ {
			for i > 0 && rx.Len() != 0 && ctx.Err() == nil {
				time.Sleep(time.Millisecond)
			}
			fake.QueueGate(gateFor())
			for rx.Len() != 1 && ctx.Err() == nil {
				time.Sleep(time.Millisecond)
			}
		}
	}()

	data, err := ctrl.Run(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, data)

	for _, bucket := range data.Buckets {
		assert.Len(t, bucket.Raw, params.NumAverages)
	}
}

func TestControllerRunRejectsConcurrentRuns(t *testing.T) {
	fake := device.NewFakeDriver()
	tx := device.NewTX(fake)
	rx := device.NewRX(fake)
	ctrl := NewController(tx, rx, testCalibration())
	ctrl.SetSequence(simpleADCSource())

	ctrl.mu.Lock()
	ctrl.running = true
	ctrl.mu.Unlock()

	_, err := ctrl.Run(context.Background(), baseParams())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestControllerRunRequiresSequence(t *testing.T) {
	fake := device.NewFakeDriver()
	tx := device.NewTX(fake)
	rx := device.NewRX(fake)
	ctrl := NewController(tx, rx, testCalibration())

	_, err := ctrl.Run(context.Background(), baseParams())
	assert.ErrorIs(t, err, ErrNoSequence)
}

func TestControllerRunMissingAverageOnPartialGates(t *testing.T) {
	fake := device.NewFakeDriver()
	tx := device.NewTX(fake)
	rx := device.NewRX(fake)
	ctrl := NewController(tx, rx, testCalibration())
	ctrl.SetSequence(simpleADCSource())

	params := baseParams()
	params.NumAverages = 2
	_, err := ctrl.ensureUnrolled(simpleADCSource(), params)
	require.NoError(t, err)

	// Only supply a gate for the first average; the second average's RX
	// poll will time out with zero gates, leaving that bucket short.
	fake.QueueGate(gateFor())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = ctrl.Run(ctx, params)
	assert.ErrorIs(t, err, ErrMissingAverage)
}

func TestParametersHashDeterministic(t *testing.T) {
	p := baseParams()
	h1, err := p.Hash()
	require.NoError(t, err)
	h2, err := p.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	changed := p.Update(func(p *Parameters) { p.LarmorFrequency += 1 })
	h3, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
