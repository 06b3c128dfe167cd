// Package ddc implements the digital down-conversion pipeline (spec.md
// §4.G): group captured gates by readout length, extract the embedded
// phase reference, demodulate, decimate, and phase-correct.
package ddc

import (
	"math"
	"math/cmplx"

	"github.com/schote/spectrum-console/internal/device"
)

// Params is the subset of acquisition parameters the DDC pipeline needs.
type Params struct {
	Larmor       float64 // Hz
	Decimation   int
	SampleRate   float64 // f_spcm, Hz
	ChannelScale []float64
}

// Bucket accumulates averages for one distinct readout length.
type Bucket struct {
	ReadoutLen int
	// Raw holds, per average appended so far, one [coils][phase-encode][readout] complex slab.
	Raw []Slab
	// Unprocessed holds the pre-demodulation, reference-augmented data for
	// the same averages (spec.md §4.I unprocessed_data).
	Unprocessed []Slab
}

// Slab is a 3D [coils][pe][ro] array flattened with explicit strides, to
// avoid allocating a jagged structure per average.
type Slab struct {
	Coils, PE, RO int
	Data          []complex128 // index: ((c*PE)+p)*RO+r
}

func newSlab(coils, pe, ro int) Slab {
	return Slab{Coils: coils, PE: pe, RO: ro, Data: make([]complex128, coils*pe*ro)}
}

func (s Slab) at(c, p, r int) complex128 { return s.Data[(c*s.PE+p)*s.RO+r] }
func (s Slab) set(c, p, r int, v complex128) { s.Data[(c*s.PE+p)*s.RO+r] = v }

// Process groups gates by readout length, then runs the per-bucket pipeline
// of spec.md §4.G steps 2-7, appending to existing and returning it: one
// Bucket per distinct raw readout length, keyed by that length. Buckets are
// processed in first-occurrence order, but the returned map does not record
// that order.
func Process(gates []device.RawGate, params Params, existing map[int]*Bucket) (map[int]*Bucket, error) {
	if existing == nil {
		existing = make(map[int]*Bucket)
	}
	order, grouped := groupByLength(gates)

	for _, ro := range order {
		group := grouped[ro]
		unprocessed := buildUnprocessedSlab(group, params)

		bucket := existing[ro]
		if bucket == nil {
			bucket = &Bucket{}
			existing[ro] = bucket
		}
		bucket.Unprocessed = append(bucket.Unprocessed, unprocessed)

		demodulated := demodulate(unprocessed, params)
		decimated := decimate(demodulated, params.Decimation)
		corrected := phaseCorrect(decimated)
		bucket.Raw = append(bucket.Raw, corrected)
		bucket.ReadoutLen = corrected.RO
	}
	return existing, nil
}

// groupByLength implements spec.md §4.G step 1: group gates sharing a
// readout length, preserving first-occurrence order of the distinct
// lengths.
func groupByLength(gates []device.RawGate) ([]int, map[int][]device.RawGate) {
	order := make([]int, 0)
	grouped := make(map[int][]device.RawGate)
	for _, g := range gates {
		ro := g.ReadoutLen()
		if _, ok := grouped[ro]; !ok {
			order = append(order, ro)
		}
		grouped[ro] = append(grouped[ro], g)
	}
	return order, grouped
}

// buildUnprocessedSlab implements spec.md §4.G step 2: extract the bit-15
// reference line from coil 0, strip it from the analog value, scale every
// coil to mV, and append the reference as an extra trailing "coil".
func buildUnprocessedSlab(group []device.RawGate, params Params) Slab {
	nCoils := group[0].Coils
	ro := group[0].ReadoutLen()
	pe := len(group)

	out := newSlab(nCoils+1, pe, ro)
	for p, gate := range group {
		for r := 0; r < ro; r++ {
			raw0 := gate.Samples[0][r]
			ref := float64(uint16(raw0) >> 15)
			analog0 := int16(uint16(raw0) << 1)

			for c := 0; c < nCoils; c++ {
				v := gate.Samples[c][r]
				if c == 0 {
					v = analog0
				}
				scale := 1.0
				if c < len(params.ChannelScale) {
					scale = params.ChannelScale[c]
				}
				out.set(c, p, r, complex(float64(v)*scale, 0))
			}
			out.set(nCoils, p, r, complex(ref, 0))
		}
	}
	return out
}

// demodulate implements spec.md §4.G step 4: multiply every "coil"
// (including the reference) by exp(2*pi*i*k*f_L/f_spcm) along the readout
// axis.
func demodulate(in Slab, params Params) Slab {
	out := newSlab(in.Coils, in.PE, in.RO)
	for r := 0; r < in.RO; r++ {
		phase := 2 * math.Pi * float64(r) * params.Larmor / params.SampleRate
		mix := cmplx.Exp(complex(0, phase))
		for c := 0; c < in.Coils; c++ {
			for p := 0; p < in.PE; p++ {
				out.set(c, p, r, in.at(c, p, r)*mix)
			}
		}
	}
	return out
}

// decimate implements spec.md §4.G step 5: FIR low-pass decimation along
// the readout axis by params.Decimation.
func decimate(in Slab, factor int) Slab {
	if factor <= 1 {
		out := newSlab(in.Coils, in.PE, in.RO)
		copy(out.Data, in.Data)
		return out
	}
	filter := designLowpassFIR(factor)
	outRO := in.RO / factor
	out := newSlab(in.Coils, in.PE, outRO)
	for c := 0; c < in.Coils; c++ {
		for p := 0; p < in.PE; p++ {
			row := make([]complex128, in.RO)
			for r := 0; r < in.RO; r++ {
				row[r] = in.at(c, p, r)
			}
			filtered := convolveSame(row, filter)
			for r := 0; r < outRO; r++ {
				out.set(c, p, r, filtered[r*factor])
			}
		}
	}
	return out
}

// phaseCorrect implements spec.md §4.G step 6: use the last "coil" (the
// demodulated, decimated reference) as the phase standard for every signal
// coil, then drop the reference coil.
func phaseCorrect(in Slab) Slab {
	refCoil := in.Coils - 1
	out := newSlab(refCoil, in.PE, in.RO)
	for p := 0; p < in.PE; p++ {
		for r := 0; r < in.RO; r++ {
			refPhase := cmplx.Phase(in.at(refCoil, p, r))
			correction := cmplx.Exp(complex(0, -refPhase))
			for c := 0; c < refCoil; c++ {
				out.set(c, p, r, in.at(c, p, r)*correction)
			}
		}
	}
	return out
}
