package dsp

import "sort"

// LerpUniform linearly interpolates the (tt, waveform) samples onto n
// uniformly spaced points spanning [tt[0], tt[len(tt)-1]], matching
// np.interp(np.linspace(tt[0], tt[-1], n), tt, waveform).
//
// An empty tt yields n zeros and a single-point tt yields n copies of
// waveform[0]. Otherwise tt must be non-decreasing and the same length as
// waveform.
func LerpUniform(tt []float64, waveform []float64, n int) []float64 {
	out := make([]float64, n)
	if len(tt) == 0 || n == 0 {
		return out
	}
	if len(tt) == 1 || n == 1 {
		for i := range out {
			out[i] = waveform[0]
		}
		return out
	}

	start, end := tt[0], tt[len(tt)-1]
	step := (end - start) / float64(n-1)

	for i := 0; i < n; i++ {
		x := start + float64(i)*step
		out[i] = interpAt(tt, waveform, x)
	}
	return out
}

// interpAt evaluates the piecewise-linear function defined by (tt, waveform)
// at x, clamping to the boundary values outside [tt[0], tt[len-1]].
func interpAt(tt, waveform []float64, x float64) float64 {
	if x <= tt[0] {
		return waveform[0]
	}
	if x >= tt[len(tt)-1] {
		return waveform[len(waveform)-1]
	}
	j := sort.SearchFloat64s(tt, x)
	if j < len(tt) && tt[j] == x {
		return waveform[j]
	}
	// j is the first index with tt[j] > x, so the bracketing segment is
	// (j-1, j).
	x0, x1 := tt[j-1], tt[j]
	y0, y1 := waveform[j-1], waveform[j]
	frac := (x - x0) / (x1 - x0)
	return y0 + frac*(y1-y0)
}
