// Package unroll implements the sequence unroller (spec.md §4.C): it walks
// a block-event source and emits a fixed-dwell, 4-channel interleaved int16
// waveform with the ADC gate, phase reference, and RF-unblanking signals
// packed into bit 15 of GX/GY/GZ respectively.
package unroll

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/schote/spectrum-console/internal/dsp"
	"github.com/schote/spectrum-console/internal/logging"
	"github.com/schote/spectrum-console/internal/seqblock"
	"github.com/schote/spectrum-console/internal/waveform"
)

var log = logging.For("unroll")

// Unroll converts source into an Unrolled-Sequence according to params.
// See spec.md §4.C for the full algorithm; this implementation follows it
// step for step, including the two Open Questions resolved in spec.md §9:
// the carrier's running phase anchors to the first RF-bearing block in the
// whole run (never reset between blocks or averages), and the reference
// signal is filled across the entire block rather than truncated.
func Unroll(source seqblock.Source, params Params) (*waveform.Unrolled, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("unroll: invalid parameters: %w", err)
	}
	n := source.NumBlocks()
	if n == 0 {
		return nil, fmt.Errorf("unroll: %w", ErrEmpty)
	}

	dwell := params.SpcmDwellTime.Seconds()
	fSpcm := 1 / dwell

	seq := make([][]int16, n)
	adcGate := make([][]int16, n)
	unblank := make([][]int16, n)
	reference := make([][]int16, n)

	sampleCount := 0
	adcCount := 0
	rfStartSamplePos := -1

	for k := 0; k < n; k++ {
		block, err := source.BlockAt(k)
		if err != nil {
			return nil, fmt.Errorf("unroll: block %d: %w", k, err)
		}

		nk := int(math.Round(block.Duration.Seconds() / dwell))
		work := newBlockBuffers(nk)

		applyGradientOffset(work, params)

		if block.RF != nil && len(block.RF.Signal) > 0 {
			if rfStartSamplePos < 0 {
				rfStartSamplePos = sampleCount
			}
			if err := calculateRF(work, *block.RF, params, fSpcm, sampleCount, rfStartSamplePos); err != nil {
				return nil, fmt.Errorf("unroll: block %d RF: %w", k, err)
			}
		}

		if block.ADC != nil {
			addADCGate(work, *block.ADC, params, fSpcm, sampleCount)
			adcCount++
		}

		for axis := 0; axis < 3; axis++ {
			grad := block.Gradient(axisFromIndex(axis))
			if grad == nil {
				continue
			}
			if err := calculateGradient(work, *grad, params, dwell, axis); err != nil {
				return nil, fmt.Errorf("unroll: block %d gradient %s: %w", k, grad.Axis, err)
			}
		}

		packDigitalLines(work)

		seq[k] = work.seq
		adcGate[k] = work.adcK
		unblank[k] = work.unblankK
		reference[k] = work.refK

		sampleCount += nk
	}

	log.Debug("unrolled sequence", "total_samples", sampleCount, "blocks", n)

	return &waveform.Unrolled{
		Seq:                seq,
		ADCGate:            adcGate,
		RFUnblanking:       unblank,
		Reference:          reference,
		SampleCount:        sampleCount,
		DwellTime:          params.SpcmDwellTime,
		Larmor:             params.Larmor,
		Duration:           time.Duration(float64(sampleCount) * dwell * float64(time.Second)),
		ADCCount:           adcCount,
		RFToMillivolt:      params.RFToMillivolt,
		GPAGain:            [3]float64{params.GPAGain[1], params.GPAGain[2], params.GPAGain[3]},
		GradientEfficiency: [3]float64{params.GradientEfficiency[1], params.GradientEfficiency[2], params.GradientEfficiency[3]},
	}, nil
}

func axisFromIndex(i int) seqblock.Axis {
	switch i {
	case 0:
		return seqblock.AxisX
	case 1:
		return seqblock.AxisY
	default:
		return seqblock.AxisZ
	}
}

// blockBuffers holds the per-block working arrays used while unrolling a
// single block, before the digital lines are packed into bit 15.
type blockBuffers struct {
	nk int
	// seq is the interleaved [RF, GX, GY, GZ] buffer, 4*nk long, stored as
	// plain analog int16 values until packDigitalLines runs.
	seq      []int16
	adcK     []int16
	unblankK []int16
	refK     []int16
}

func newBlockBuffers(nk int) *blockBuffers {
	return &blockBuffers{
		nk:       nk,
		seq:      make([]int16, 4*nk),
		adcK:     make([]int16, nk),
		unblankK: make([]int16, nk),
		refK:     make([]int16, nk),
	}
}

// get/set/add address channel ch (0=RF,1=GX,2=GY,3=GZ) at local sample i
// within the interleaved seq buffer.
func (b *blockBuffers) get(ch, i int) int16 { return b.seq[4*i+ch] }
func (b *blockBuffers) set(ch, i int, v int16) { b.seq[4*i+ch] = v }
func (b *blockBuffers) add(ch, i int, v int16) { b.seq[4*i+ch] += v }

// applyGradientOffset writes the per-channel DC offset (spec.md §4.C step 2)
// into GX/GY/GZ, scaled to an int16 fraction of the channel's output limit.
// These offsets persist into every block, written before any analog event
// data so that later gradient writes in calculateGradient can read them
// back out of slot 0 to respect the combined limit.
func applyGradientOffset(b *blockBuffers, params Params) {
	offsets := [3]float64{params.GradientOffset.X, params.GradientOffset.Y, params.GradientOffset.Z}
	for axis := 0; axis < 3; axis++ {
		ch := axis + 1
		limit := params.OutputLimits[ch]
		v := dsp.MustSaturateInt16(offsets[axis] / limit * dsp.Int16Max)
		for i := 0; i < b.nk; i++ {
			b.set(ch, i, v)
		}
	}
}

// calculateRF implements spec.md §4.C step 3.
func calculateRF(b *blockBuffers, rf seqblock.RFEvent, params Params, fSpcm float64, sampleCount, rfStartSamplePos int) error {
	samplesDelay := int(math.Floor(maxDuration(params.System.RFDeadTime, rf.DeadTime, rf.Delay).Seconds() * fSpcm))
	numSamples := int(math.Floor(rf.ShapeDur.Seconds() * fSpcm))
	samplesRingdown := int(math.Floor(maxDuration(params.System.RFRingdownTime, rf.RingdownTime).Seconds() * fSpcm))

	for i := samplesDelay; i < b.nk-samplesRingdown-1 && i >= 0; i++ {
		b.unblankK[i] = 1
	}

	rfScaling := params.B1Scaling * params.RFToMillivolt / params.OutputLimits[0]
	phaseFactor := cmplx.Exp(complex(0, rf.PhaseOffset))

	maxMag := 0.0
	scaledEnvelope := make([]complex128, len(rf.Signal))
	for i, s := range rf.Signal {
		v := s * phaseFactor * complex(rfScaling, 0)
		scaledEnvelope[i] = v
		if m := cmplx.Abs(v); m > maxMag {
			maxMag = m
		}
	}
	if maxMag > 1 {
		return fmt.Errorf("%w: RF magnitude %g exceeds output limit", ErrOutOfRange, maxMag)
	}
	for i := range scaledEnvelope {
		scaledEnvelope[i] *= complex(dsp.Int16Max, 0)
	}

	env := dsp.Resample(scaledEnvelope, numSamples)

	carrierPhaseSamples := sampleCount + samplesDelay - rfStartSamplePos
	carrierPhaseOffset := float64(carrierPhaseSamples) * params.SpcmDwellTime.Seconds()
	carrier := dsp.Carrier(params.Larmor, rf.FreqOffset, params.SpcmDwellTime.Seconds(), numSamples, carrierPhaseOffset)

	end := samplesDelay + numSamples
	if end > b.nk {
		return fmt.Errorf("%w: RF event ends at sample %d, block has %d", ErrBufferOverflow, end, b.nk)
	}
	for i := 0; i < numSamples; i++ {
		v := real(env[i] * carrier[i])
		s, err := dsp.SaturateInt16(v)
		if err != nil {
			return fmt.Errorf("unroll: RF sample: %w", err)
		}
		b.set(0, samplesDelay+i, s)
	}
	return nil
}

// addADCGate implements spec.md §4.C step 4.
func addADCGate(b *blockBuffers, adc seqblock.ADCEvent, params Params, fSpcm float64, sampleCount int) {
	delaySamples := int(math.Max(adc.Delay.Seconds(), adc.DeadTime.Seconds()) * fSpcm)
	adcLen := int(math.Round(float64(adc.NumSamples) * adc.Dwell.Seconds() * fSpcm))

	for i := delaySamples; i < delaySamples+adcLen && i < b.nk; i++ {
		if i >= 0 {
			b.adcK[i] = 1
		}
	}

	ref := dsp.ReferenceSquareWave(params.Larmor, params.SpcmDwellTime.Seconds(), sampleCount, b.nk)
	copy(b.refK, toInt16(ref))
}

func toInt16(bits []uint8) []int16 {
	out := make([]int16, len(bits))
	for i, v := range bits {
		out[i] = int16(v)
	}
	return out
}

// calculateGradient implements spec.md §4.C step 5, for trapezoid and
// arbitrary waveforms alike.
func calculateGradient(b *blockBuffers, grad seqblock.GradientEvent, params Params, dwell float64, axis int) error {
	ch := axis + 1
	limit := params.OutputLimits[ch]

	offsetMV := float64(b.get(ch, 0)) / dsp.Int16Max * limit
	scaling := params.FOVScaling.Get(axis) / (gyromagneticRatio * params.GPAGain[ch] * params.GradientEfficiency[ch])

	var waveformMV []float64
	var samplesDelay int

	switch grad.Kind {
	case seqblock.GradientArbitrary:
		samplesDelay = int(grad.Delay.Seconds() / dwell)
		n := int(grad.ShapeDur.Seconds() / dwell)
		scaledHzPerM := make([]float64, len(grad.Waveform))
		for i, w := range grad.Waveform {
			scaledHzPerM[i] = w * scaling
		}
		tt := make([]float64, len(grad.Time))
		for i, t := range grad.Time {
			tt[i] = t.Seconds()
		}
		if peak := maxAbs(scaledHzPerM) + abs(offsetMV); peak > limit {
			return fmt.Errorf("%w: gradient amplitude %g exceeds limit %g", ErrOutOfRange, peak, limit)
		}
		waveformMV = dsp.LerpUniform(tt, scaledHzPerM, n)
	case seqblock.GradientTrapezoid:
		samplesDelay = int(grad.Delay.Seconds() / dwell)
		flatAmp := grad.Amplitude * scaling
		if peak := abs(flatAmp) + abs(offsetMV); peak > limit {
			return fmt.Errorf("%w: gradient amplitude %g exceeds limit %g", ErrOutOfRange, peak, limit)
		}
		waveformMV = trapezoidMV(flatAmp, grad.RiseTime, grad.FlatTime, grad.FallTime, dwell)
	default:
		return fmt.Errorf("%w: unknown gradient kind", ErrInvalidBlock)
	}

	end := samplesDelay + len(waveformMV)
	if end > b.nk {
		return fmt.Errorf("%w: gradient event ends at sample %d, block has %d", ErrBufferOverflow, end, b.nk)
	}
	scale := dsp.Int16Max / limit
	for i, mv := range waveformMV {
		s, err := dsp.SaturateInt16(mv * scale)
		if err != nil {
			return fmt.Errorf("unroll: gradient sample: %w", err)
		}
		b.add(ch, samplesDelay+i, s)
	}
	return nil
}

func trapezoidMV(flatAmp float64, rise, flat, fall time.Duration, dwell float64) []float64 {
	nRise := int(rise.Seconds() / dwell)
	nFlat := int(flat.Seconds() / dwell)
	nFall := int(fall.Seconds() / dwell)
	out := make([]float64, 0, nRise+nFlat+nFall)
	for i := 0; i < nRise; i++ {
		out = append(out, flatAmp*float64(i)/float64(nRise))
	}
	for i := 0; i < nFlat; i++ {
		out = append(out, flatAmp)
	}
	for i := 0; i < nFall; i++ {
		out = append(out, flatAmp*(1-float64(i)/float64(nFall)))
	}
	return out
}

// packDigitalLines implements spec.md §4.C step 6: after all analog writes,
// right-shift each gradient channel by one (as unsigned) and OR in the
// digital line at bit 15.
func packDigitalLines(b *blockBuffers) {
	packOne(b, 1, b.adcK)
	packOne(b, 2, b.refK)
	packOne(b, 3, b.unblankK)
}

func packOne(b *blockBuffers, ch int, digital []int16) {
	for i := 0; i < b.nk; i++ {
		analog := uint16(b.get(ch, i)) >> 1
		bit := uint16(digital[i]) << 15
		b.set(ch, i, int16(analog|bit))
	}
}

func maxDuration(ds ...time.Duration) time.Duration {
	m := ds[0]
	for _, d := range ds[1:] {
		if d > m {
			m = d
		}
	}
	return m
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if a := abs(x); a > m {
			m = a
		}
	}
	return m
}
