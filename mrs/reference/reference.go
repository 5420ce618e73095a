// Package reference determines the frequency shift that places a
// landmark resonance at its canonical chemical shift. Candidate peaks
// come from a bounded magnitude-spectrum search; a parametric
// Lorentzian (or double-Lorentzian for closely spaced pairs) fit
// refines the center and yields the landmark linewidth.
package reference

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// ErrNoPeak reports that no landmark peak was found in the search
// window.
var ErrNoPeak = errors.New("reference: no landmark peak in search window")

// Config selects the landmark and fit model.
type Config struct {
	// LandmarkPPM is the canonical chemical shift of the landmark
	// (2.01 NAA, 3.03 Cr, 4.68 water).
	LandmarkPPM float64
	// SearchWindowPPM bounds the peak search around the landmark.
	SearchWindowPPM float64
	// DoubleLorentzian fits two lines with a fixed canonical
	// separation and shared linewidth, for landmarks with a close
	// neighbor (Cr 3.03 with Cho 3.22).
	DoubleLorentzian bool
	// SecondPPM is the canonical position of the neighbor line.
	SecondPPM float64
}

// DefaultConfig references on NAA.
func DefaultConfig() Config {
	return Config{LandmarkPPM: 2.01, SearchWindowPPM: 0.25}
}

// CrCholineConfig references on the creatine/choline pair.
func CrCholineConfig() Config {
	return Config{
		LandmarkPPM:      3.03,
		SearchWindowPPM:  0.25,
		DoubleLorentzian: true,
		SecondPPM:        3.22,
	}
}

// WaterConfig references on the residual water line.
func WaterConfig() Config {
	return Config{LandmarkPPM: 4.68, SearchWindowPPM: 0.35}
}

// Result is the referencing outcome.
type Result struct {
	// ShiftPPM is the fitted landmark position minus the canonical
	// one: positive when the spectrum sits downfield of where it
	// should.
	ShiftPPM float64
	// LinewidthHz is the fitted landmark FWHM.
	LinewidthHz float64
}

// Find locates the landmark and fits its lineshape. The linewidth
// seed scales with field strength.
func Find(sp *mrs.Spectrum, cfg Config) (Result, error) {
	if sp == nil || len(sp.Bins) == 0 {
		return Result{}, fmt.Errorf("reference: empty spectrum")
	}
	if cfg.LandmarkPPM == 0 {
		cfg = DefaultConfig()
	}
	if cfg.SearchWindowPPM <= 0 {
		cfg.SearchWindowPPM = 0.25
	}
	axis, err := spectral.NewAxis(sp.Meta)
	if err != nil {
		return Result{}, fmt.Errorf("reference: %w", err)
	}

	mag := spectral.Magnitude(sp.Bins)
	lo, hi := axis.IndexRange(cfg.LandmarkPPM-cfg.SearchWindowPPM, cfg.LandmarkPPM+cfg.SearchWindowPPM)
	idx, height := spectral.FindPeak(mag, lo, hi)
	if idx < 0 || height <= 0 {
		return Result{}, ErrNoPeak
	}
	seedPPM := axis.PPM(spectral.RefineParabolic(mag, idx))
	seedLwHz := linewidthPrior(sp.Meta.FieldStrengthT)

	fit, err := fitLineshape(mag, axis, lo, hi, cfg, seedPPM, height, seedLwHz)
	if err != nil {
		// Degenerate fit: fall back to the interpolated peak location.
		return Result{ShiftPPM: seedPPM - cfg.LandmarkPPM, LinewidthHz: seedLwHz}, nil
	}
	return fit, nil
}

// Apply shifts a spectrum so its landmark lands on the canonical
// position and records the shift in the provenance. The same shift
// must be applied to every condition derived from one acquisition so
// paired spectra stay mutually aligned.
func Apply(sp *mrs.Spectrum, res Result) (*mrs.Spectrum, error) {
	axis, err := spectral.NewAxis(sp.Meta)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	out := sp.Clone()
	spectral.ShiftFrequency(out.FID, -res.ShiftPPM*axis.HzPerPPM(), sp.Meta.DwellTime)
	out.Bins, err = spectral.Transform(out.FID)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	out.Prov.RefShiftPPM = res.ShiftPPM
	out.Prov.RefLinewidthHz = res.LinewidthHz
	return out, nil
}

// linewidthPrior returns the expected landmark FWHM in Hz for a field
// strength, roughly 1.7 Hz per tesla.
func linewidthPrior(fieldT float64) float64 {
	if fieldT <= 0 {
		return 5
	}
	return 1.7 * fieldT
}

func fitLineshape(mag []float64, axis *spectral.Axis, lo, hi int, cfg Config,
	seedPPM, seedAmp, seedLwHz float64) (Result, error) {

	ppm := make([]float64, hi-lo)
	y := make([]float64, hi-lo)
	for i := lo; i < hi; i++ {
		ppm[i-lo] = axis.PPM(float64(i))
		y[i-lo] = mag[i]
	}
	hzPerPPM := axis.HzPerPPM()
	sep := cfg.SecondPPM - cfg.LandmarkPPM

	model := func(x []float64, p float64) float64 {
		// x = [amp1, center, fwhmHz, offset, (amp2)]
		lwPPM := x[2] / hzPerPPM
		v := x[3] + lorentzMag(p, x[1], lwPPM, x[0])
		if cfg.DoubleLorentzian {
			v += lorentzMag(p, x[1]+sep, lwPPM, x[4])
		}
		return v
	}

	objective := func(x []float64) float64 {
		if x[0] < 0 || x[2] <= 0 {
			return math.Inf(1)
		}
		if cfg.DoubleLorentzian && x[4] < 0 {
			return math.Inf(1)
		}
		var ss float64
		for i, p := range ppm {
			d := y[i] - model(x, p)
			ss += d * d
		}
		return ss
	}

	x0 := []float64{seedAmp, seedPPM, seedLwHz, 0}
	if cfg.DoubleLorentzian {
		x0 = append(x0, 0.6*seedAmp)
	}

	settings := &optimize.Settings{
		MajorIterations: 500,
		FuncEvaluations: 4000,
	}
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, x0, settings, &optimize.NelderMead{})
	if err != nil && res == nil {
		return Result{}, fmt.Errorf("reference: lineshape fit failed: %w", err)
	}
	x := res.X
	if !finiteAll(x) || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return Result{}, fmt.Errorf("reference: lineshape fit diverged")
	}
	return Result{ShiftPPM: x[1] - cfg.LandmarkPPM, LinewidthHz: x[2]}, nil
}

// lorentzMag is the magnitude profile of a Lorentzian line whose
// absorption-mode FWHM is lw. The magnitude spectrum of a damped
// complex exponential falls off as 1/sqrt(1+u^2), not as the
// absorption Lorentzian itself.
func lorentzMag(p, center, lw, amp float64) float64 {
	u := 2 * (p - center) / lw
	return amp / math.Sqrt(1+u*u)
}

func finiteAll(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
