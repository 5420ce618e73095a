package spectral

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-vecmath"
)

// Magnitude returns |X[k]| for each spectrum bin using the SIMD
// vecmath backend.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}
	n := len(in)
	re := make([]float64, n)
	im := make([]float64, n)
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}
	out := make([]float64, n)
	vecmath.Magnitude(out, re, im)
	return out
}

// RealPart returns the real channel of a spectrum.
func RealPart(in []complex128) []float64 {
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = real(c)
	}
	return out
}

// Phase returns arg(X[k]) for each bin in radians.
func Phase(in []complex128) []float64 {
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = cmplx.Phase(c)
	}
	return out
}

// UnwrapPhase returns a new phase slice with +/-2*pi discontinuities
// removed.
func UnwrapPhase(phase []float64) []float64 {
	if len(phase) == 0 {
		return nil
	}
	out := make([]float64, len(phase))
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		switch {
		case d > math.Pi:
			offset -= 2 * math.Pi
		case d < -math.Pi:
			offset += 2 * math.Pi
		}
		out[i] = phase[i] + offset
	}
	return out
}

// ShiftFrequency modulates a FID by df Hz in place:
// fid[t] *= exp(i*2*pi*df*t*dwell).
func ShiftFrequency(fid []complex128, df, dwell float64) {
	if df == 0 {
		return
	}
	for t := range fid {
		ang := 2 * math.Pi * df * float64(t) * dwell
		fid[t] *= cmplx.Exp(complex(0, ang))
	}
}

// ApplyPhase0 rotates every sample by phi radians in place. The same
// rotation applies identically in time and frequency domain.
func ApplyPhase0(data []complex128, phi float64) {
	if phi == 0 {
		return
	}
	rot := cmplx.Exp(complex(0, phi))
	for i := range data {
		data[i] *= rot
	}
}

// ApplyPhase1 applies a first-order (frequency-linear) phase to an
// ascending-ppm spectrum in place. phiPerPPM is radians per ppm and
// pivotPPM the zero-crossing of the ramp.
func ApplyPhase1(bins []complex128, axis *Axis, phiPerPPM, pivotPPM float64) {
	if phiPerPPM == 0 {
		return
	}
	for i := range bins {
		ang := phiPerPPM * (axis.PPM(float64(i)) - pivotPPM)
		bins[i] *= cmplx.Exp(complex(0, ang))
	}
}

// CorrectDC removes the DC offset estimated from the tail of the FID,
// where the signal has decayed into noise. fraction is the trailing
// share of samples used for the estimate; values outside (0,1] fall
// back to the final quarter.
func CorrectDC(fid []complex128, fraction float64) {
	n := len(fid)
	if n == 0 {
		return
	}
	if fraction <= 0 || fraction > 1 {
		fraction = 0.25
	}
	start := n - int(float64(n)*fraction)
	if start >= n {
		start = n - 1
	}
	var sum complex128
	for _, c := range fid[start:] {
		sum += c
	}
	mean := sum / complex(float64(n-start), 0)
	for i := range fid {
		fid[i] -= mean
	}
}

// ApodizeExponential applies exponential line broadening of lbHz in
// place: fid[t] *= exp(-pi*lb*t*dwell).
func ApodizeExponential(fid []complex128, lbHz, dwell float64) {
	if lbHz <= 0 {
		return
	}
	for t := range fid {
		damp := math.Exp(-math.Pi * lbHz * float64(t) * dwell)
		fid[t] *= complex(damp, 0)
	}
}

// ApodizeGaussian applies Gaussian line broadening of gbHz in place:
// fid[t] *= exp(-(pi*gb*t*dwell)^2 / (4*ln 2)).
func ApodizeGaussian(fid []complex128, gbHz, dwell float64) {
	if gbHz <= 0 {
		return
	}
	k := math.Pi * gbHz * dwell
	for t := range fid {
		x := k * float64(t)
		damp := math.Exp(-x * x / (4 * math.Ln2))
		fid[t] *= complex(damp, 0)
	}
}

// Scale multiplies every sample by a real factor in place.
func Scale(data []complex128, factor float64) {
	f := complex(factor, 0)
	for i := range data {
		data[i] *= f
	}
}
