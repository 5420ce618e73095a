package correct

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-mrs/internal/clinalg"
	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// WaterConfig controls subspace residual water removal.
type WaterConfig struct {
	// Band of chemical shifts treated as water.
	LowPPM  float64
	HighPPM float64
	// MaxComponents is the initial subspace order; the bounded retry
	// walks it down to MinComponents on numerical instability.
	MaxComponents int
	MinComponents int
	// HankelRows caps the Hankel matrix height.
	HankelRows int
	// DCFraction is the trailing FID share used for the re-centering
	// pass after subtraction.
	DCFraction float64
}

// DefaultWaterConfig returns the standard water removal parameters.
func DefaultWaterConfig() WaterConfig {
	return WaterConfig{
		LowPPM:        4.5,
		HighPPM:       4.9,
		MaxComponents: 20,
		MinComponents: 1,
		HankelRows:    256,
		DCFraction:    0.25,
	}
}

func (c WaterConfig) normalized() WaterConfig {
	d := DefaultWaterConfig()
	if c.LowPPM == 0 && c.HighPPM == 0 {
		c.LowPPM, c.HighPPM = d.LowPPM, d.HighPPM
	}
	if c.MaxComponents <= 0 {
		c.MaxComponents = d.MaxComponents
	}
	if c.MinComponents <= 0 {
		c.MinComponents = d.MinComponents
	}
	if c.HankelRows <= 0 {
		c.HankelRows = d.HankelRows
	}
	if c.DCFraction <= 0 || c.DCFraction > 1 {
		c.DCFraction = d.DCFraction
	}
	return c
}

// RemoveWater subtracts the residual water resonance from a spectrum
// using a Hankel-SVD subspace filter restricted to the configured
// ppm band, then re-centers the DC offset from the FID tail.
//
// A non-finite filter output triggers the documented bounded retry:
// the subspace order is decremented until the result is finite or the
// minimum order is reached. Exhausting the retry returns
// ErrRetryExhausted; callers record it as a stage failure rather than
// aborting the batch.
func RemoveWater(sp *mrs.Spectrum, cfg WaterConfig) (*mrs.Spectrum, error) {
	if sp == nil || len(sp.FID) == 0 {
		return nil, fmt.Errorf("correct: water removal requires a non-empty spectrum")
	}
	cfg = cfg.normalized()
	axis, err := spectral.NewAxis(sp.Meta)
	if err != nil {
		return nil, fmt.Errorf("correct: %w", err)
	}

	filtered, _, err := RetryWithDegradation(
		descending(cfg.MaxComponents, cfg.MinComponents),
		func(order int) ([]complex128, bool, error) {
			out, herr := hsvdFilter(sp.FID, sp.Meta.DwellTime, axis, cfg, order)
			if herr != nil {
				return nil, false, herr
			}
			return out, allFinite(out), nil
		})
	if err != nil {
		return nil, err
	}

	spectral.CorrectDC(filtered, cfg.DCFraction)

	out := sp.Clone()
	out.FID = filtered
	out.Bins, err = spectral.Transform(filtered)
	if err != nil {
		return nil, fmt.Errorf("correct: %w", err)
	}
	out.Prov.WaterRemoved = true
	return out, nil
}

// hsvdFilter models the FID as damped complex exponentials via the
// Hankel subspace method and subtracts the components whose center
// frequency falls inside the water band.
func hsvdFilter(fid []complex128, dwell float64, axis *spectral.Axis, cfg WaterConfig, order int) ([]complex128, error) {
	n := len(fid)
	rows := cfg.HankelRows
	if rows > n/2 {
		rows = n / 2
	}
	if rows < order+1 {
		return nil, fmt.Errorf("correct: %d Hankel rows cannot support order %d", rows, order)
	}
	cols := n - rows + 1

	// Gram matrix A A^H of the implicit Hankel matrix A[i][j] = fid[i+j].
	gram := make([]complex128, rows*rows)
	for i := 0; i < rows; i++ {
		for k := i; k < rows; k++ {
			var s complex128
			for j := 0; j < cols; j++ {
				s += fid[i+j] * cmplx.Conj(fid[k+j])
			}
			gram[i*rows+k] = s
			if i != k {
				gram[k*rows+i] = cmplx.Conj(s)
			}
		}
	}

	_, vecs, err := clinalg.TopEigenHermitian(gram, rows, order)
	if err != nil {
		return nil, fmt.Errorf("correct: subspace decomposition failed: %w", err)
	}

	// Shift invariance: solve Utop Z = Ubottom column by column.
	top := make([]complex128, (rows-1)*order)
	for i := 0; i < rows-1; i++ {
		for c := 0; c < order; c++ {
			top[i*order+c] = vecs[c][i]
		}
	}
	z := make([]complex128, order*order)
	for c := 0; c < order; c++ {
		rhs := make([]complex128, rows-1)
		for i := 0; i < rows-1; i++ {
			rhs[i] = vecs[c][i+1]
		}
		col, lerr := clinalg.SolveLS(top, rows-1, order, rhs)
		if lerr != nil {
			return nil, fmt.Errorf("correct: shift-invariance solve failed: %w", lerr)
		}
		for r := 0; r < order; r++ {
			z[r*order+c] = col[r]
		}
	}

	poles, err := clinalg.Eigenvalues(z, order)
	if err != nil {
		return nil, fmt.Errorf("correct: pole extraction failed: %w", err)
	}

	// Candidate poles inside the water band; the real-embedding
	// conjugates land outside unless they are genuinely near water.
	water := make([]complex128, 0, len(poles))
	for _, p := range poles {
		if cmplx.Abs(p) == 0 || cmplx.Abs(p) > 1.05 {
			continue
		}
		freqHz := cmplx.Phase(p) / (2 * math.Pi * dwell)
		ppm := freqHz/axis.HzPerPPM() + spectral.CenterPPM
		if ppm >= cfg.LowPPM && ppm <= cfg.HighPPM {
			water = append(water, p)
		}
	}
	out := append([]complex128(nil), fid...)
	if len(water) == 0 {
		return out, nil
	}

	// Amplitude fit of the water components on the full FID.
	w := len(water)
	vand := make([]complex128, n*w)
	for p, pole := range water {
		v := complex(1, 0)
		for t := 0; t < n; t++ {
			vand[t*w+p] = v
			v *= pole
		}
	}
	amps, err := clinalg.SolveLS(vand, n, w, fid)
	if err != nil {
		return nil, fmt.Errorf("correct: water amplitude fit failed: %w", err)
	}
	for t := 0; t < n; t++ {
		var model complex128
		for p := range water {
			model += amps[p] * vand[t*w+p]
		}
		out[t] -= model
	}
	return out, nil
}

func allFinite(v []complex128) bool {
	for _, c := range v {
		if math.IsNaN(real(c)) || math.IsNaN(imag(c)) ||
			math.IsInf(real(c), 0) || math.IsInf(imag(c), 0) {
			return false
		}
	}
	return true
}
