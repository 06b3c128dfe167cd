package dsp

import "math"

// Carrier evaluates the phase-continuous RF carrier at n samples of local
// time (0, dwell, 2*dwell, ...), per spec.md §3/§9:
//
//	exp(2*pi*i * ((freq+freqOffset)*localTime + freq*phaseOffsetSeconds))
//
// The local-time term uses freq+freqOffset (a block's frequency offset
// affects only its own samples); the constant phase term uses freq alone,
// multiplied by phaseOffsetSeconds — the running absolute-time anchor
// computed by the caller relative to the first RF-bearing block in the run.
// This is deliberate (spec.md §9 Open Question): per-block frequency
// offsets never accumulate into the running phase.
func Carrier(freq, freqOffset float64, dwell float64, n int, phaseOffsetSeconds float64) []complex128 {
	out := make([]complex128, n)
	constPhase := 2 * math.Pi * freq * phaseOffsetSeconds
	for m := 0; m < n; m++ {
		localTime := float64(m) * dwell
		phase := 2*math.Pi*(freq+freqOffset)*localTime + constPhase
		out[m] = complex(math.Cos(phase), math.Sin(phase))
	}
	return out
}

// ReferenceSquareWave returns the 50%-duty digital reference line sampled
// over n points of local time starting at absolute sample index
// sampleOffset, high whenever sin(2*pi*freq*t) > 0 where t is absolute time
// (sampleOffset+m)*dwell. This is phase-coherent with the transmit carrier
// and is embedded per spec.md §4.C step 4.
func ReferenceSquareWave(freq, dwell float64, sampleOffset, n int) []uint8 {
	out := make([]uint8, n)
	for m := 0; m < n; m++ {
		t := float64(sampleOffset+m) * dwell
		if math.Sin(2*math.Pi*freq*t) > 0 {
			out[m] = 1
		}
	}
	return out
}
