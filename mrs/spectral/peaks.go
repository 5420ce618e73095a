package spectral

// FindPeak returns the index and value of the largest element of
// values within [lo, hi). Returns -1 when the range is empty.
func FindPeak(values []float64, lo, hi int) (int, float64) {
	if lo < 0 {
		lo = 0
	}
	if hi > len(values) {
		hi = len(values)
	}
	if lo >= hi {
		return -1, 0
	}
	best := lo
	for i := lo + 1; i < hi; i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best, values[best]
}

// RefineParabolic sharpens an integer peak location to a fractional
// bin index by fitting a parabola through the peak and its two
// neighbors. Edge bins are returned unchanged.
func RefineParabolic(values []float64, idx int) float64 {
	if idx <= 0 || idx >= len(values)-1 {
		return float64(idx)
	}
	ym := values[idx-1]
	y0 := values[idx]
	yp := values[idx+1]
	denom := ym - 2*y0 + yp
	if denom == 0 {
		return float64(idx)
	}
	delta := 0.5 * (ym - yp) / denom
	if delta > 0.5 {
		delta = 0.5
	}
	if delta < -0.5 {
		delta = -0.5
	}
	return float64(idx) + delta
}
