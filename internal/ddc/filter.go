package ddc

import "math"

// designLowpassFIR builds a symmetric windowed-sinc low-pass kernel cut at
// the Nyquist rate of the decimated output (1/factor of the input rate),
// in the stateful-coefficient style of gopus's silk decimation filters,
// generalized here to an arbitrary integer factor rather than a fixed
// 2x/3x ratio.
func designLowpassFIR(factor int) []float64 {
	if factor <= 1 {
		return []float64{1}
	}
	const tapsPerSide = 4
	n := 2*tapsPerSide*factor + 1
	cutoff := 1.0 / float64(factor)

	taps := make([]float64, n)
	mid := n / 2
	sum := 0.0
	for i := 0; i < n; i++ {
		k := float64(i - mid)
		var h float64
		if k == 0 {
			h = cutoff
		} else {
			h = cutoff * math.Sin(math.Pi*cutoff*k) / (math.Pi * cutoff * k)
		}
		// Hamming window.
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = h * w
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// convolveSame convolves x with the symmetric kernel h, returning a result
// the same length as x (edges treated as zero-padded).
func convolveSame(x []complex128, h []float64) []complex128 {
	n := len(x)
	m := len(h)
	half := m / 2
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		var acc complex128
		for j := 0; j < m; j++ {
			xi := i + j - half
			if xi < 0 || xi >= n {
				continue
			}
			acc += x[xi] * complex(h[j], 0)
		}
		out[i] = acc
	}
	return out
}
