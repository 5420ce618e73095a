package align

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// syntheticReference builds a time-domain sum of Lorentzian resonances
// used as the coarse registration target.
func syntheticReference(axis *spectral.Axis, dwell float64, res []Resonance, lwHz float64) []complex128 {
	n := axis.Len()
	fid := make([]complex128, n)
	damp := math.Pi * lwHz * dwell
	for _, r := range res {
		off := axis.OffsetHz(r.PPM)
		for t := 0; t < n; t++ {
			tt := float64(t)
			fid[t] += complex(r.Amplitude, 0) *
				cmplx.Exp(complex(-damp*tt, 2*math.Pi*off*tt*dwell))
		}
	}
	return fid
}

// correlationShift estimates the lag (in bins, fractional) that best
// aligns mag onto ref inside [lo, hi), searching lags in
// [-maxLag, maxLag]. A parabolic refinement sharpens the integer lag.
// Returns ok=false when the window is degenerate (no stable peak).
func correlationShift(mag, ref []float64, lo, hi, maxLag int) (float64, bool) {
	if lo < 0 {
		lo = 0
	}
	if hi > len(ref) {
		hi = len(ref)
	}
	if hi-lo < 3 || maxLag <= 0 {
		return 0, false
	}

	score := make([]float64, 2*maxLag+1)
	for l := -maxLag; l <= maxLag; l++ {
		var s float64
		for i := lo; i < hi; i++ {
			j := i + l
			if j < 0 || j >= len(mag) {
				continue
			}
			s += mag[j] * ref[i]
		}
		score[l+maxLag] = s
	}

	best := 0
	for i := 1; i < len(score); i++ {
		if score[i] > score[best] {
			best = i
		}
	}
	if score[best] <= 0 {
		return 0, false
	}
	frac := spectral.RefineParabolic(score, best)
	return frac - float64(maxLag), true
}
