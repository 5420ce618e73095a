// Package quality computes the scalar quality metrics reported for a
// processed spectrum: signal-to-noise ratio of a landmark peak,
// linewidth of that peak, and a summary of the frequency drift
// recorded during alignment.
package quality

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

const (
	defaultLandmarkPPM       = 2.01
	defaultLandmarkWindowPPM = 0.15
	defaultNoiseLowPPM       = -3.2
	defaultNoiseHighPPM      = -0.2
)

// Config holds quality metric parameters.
type Config struct {
	// LandmarkPPM is the peak the metrics are computed on.
	LandmarkPPM float64
	// LandmarkWindowPPM bounds the peak search around the landmark.
	LandmarkWindowPPM float64
	// NoiseLowPPM and NoiseHighPPM delimit a signal-free region used
	// for the noise estimate.
	NoiseLowPPM  float64
	NoiseHighPPM float64
}

// Metrics holds the quality measurement results.
type Metrics struct {
	// SNR is the landmark real-part height over the detrended noise
	// standard deviation.
	SNR float64
	// FWHMHz and FWHMPPM are the full width at half maximum of the
	// landmark magnitude peak.
	FWHMHz  float64
	FWHMPPM float64
	// LandmarkPPM is the interpolated peak position actually found.
	LandmarkPPM float64
}

// DriftSummary condenses the per-average landmark positions recorded
// before and after alignment.
type DriftSummary struct {
	MeanPrePPM  float64
	MeanPostPPM float64
	// MaxExcursionPrePPM and MaxExcursionPostPPM are the largest
	// absolute deviations from the respective means.
	MaxExcursionPrePPM  float64
	MaxExcursionPostPPM float64
}

// Calculator computes quality metrics for spectra sharing one
// configuration.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a quality metric calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: normalizeConfig(cfg)}
}

// Analyze is a one-shot metric computation.
func Analyze(sp *mrs.Spectrum, cfg Config) (Metrics, error) {
	return NewCalculator(cfg).Analyze(sp)
}

// Analyze computes SNR and linewidth for one spectrum.
func (c *Calculator) Analyze(sp *mrs.Spectrum) (Metrics, error) {
	if sp == nil || len(sp.Bins) == 0 {
		return Metrics{}, fmt.Errorf("quality: empty spectrum")
	}
	axis, err := spectral.NewAxis(sp.Meta)
	if err != nil {
		return Metrics{}, fmt.Errorf("quality: %w", err)
	}

	mag := spectral.Magnitude(sp.Bins)
	re := spectral.RealPart(sp.Bins)

	lo, hi := axis.IndexRange(c.cfg.LandmarkPPM-c.cfg.LandmarkWindowPPM,
		c.cfg.LandmarkPPM+c.cfg.LandmarkWindowPPM)
	idx, _ := spectral.FindPeak(mag, lo, hi)
	if idx < 0 || mag[idx] <= 0 {
		return Metrics{}, fmt.Errorf("quality: no landmark peak near %.2f ppm", c.cfg.LandmarkPPM)
	}
	peakPPM := axis.PPM(spectral.RefineParabolic(mag, idx))

	nLo, nHi := axis.IndexRange(c.cfg.NoiseLowPPM, c.cfg.NoiseHighPPM)
	sigma := detrendedStd(re[nLo:nHi])
	if sigma <= 0 || math.IsNaN(sigma) {
		return Metrics{}, fmt.Errorf("quality: degenerate noise region [%.1f, %.1f] ppm",
			c.cfg.NoiseLowPPM, c.cfg.NoiseHighPPM)
	}

	_, height := spectral.FindPeak(re, lo, hi)
	widthBins := fwhmBins(mag, idx)

	return Metrics{
		SNR:         height / sigma,
		FWHMHz:      widthBins * axis.HzPerBin(),
		FWHMPPM:     widthBins * axis.HzPerBin() / axis.HzPerPPM(),
		LandmarkPPM: peakPPM,
	}, nil
}

// SummarizeDrift condenses drift series; empty inputs yield zeros.
func SummarizeDrift(prePPM, postPPM []float64) DriftSummary {
	var s DriftSummary
	s.MeanPrePPM, s.MaxExcursionPrePPM = meanAndExcursion(prePPM)
	s.MeanPostPPM, s.MaxExcursionPostPPM = meanAndExcursion(postPPM)
	return s
}

func meanAndExcursion(v []float64) (mean, excursion float64) {
	if len(v) == 0 {
		return 0, 0
	}
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	for _, x := range v {
		if d := math.Abs(x - mean); d > excursion {
			excursion = d
		}
	}
	return mean, excursion
}

// detrendedStd removes a least-squares line before estimating the
// standard deviation, so a sloping baseline does not inflate the noise.
func detrendedStd(v []float64) float64 {
	n := len(v)
	if n < 3 {
		return 0
	}
	// Closed-form linear fit over x = 0..n-1.
	var sx, sy, sxx, sxy float64
	for i, y := range v {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	fn := float64(n)
	denom := fn*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	slope := (fn*sxy - sx*sy) / denom
	intercept := (sy - slope*sx) / fn

	var ss float64
	for i, y := range v {
		d := y - (intercept + slope*float64(i))
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// fwhmBins measures the half-maximum width of the peak at idx with
// linear interpolation at both crossings.
func fwhmBins(mag []float64, idx int) float64 {
	half := mag[idx] / 2

	left := float64(idx)
	for i := idx; i > 0; i-- {
		if mag[i-1] <= half {
			left = float64(i-1) + (half-mag[i-1])/(mag[i]-mag[i-1])
			break
		}
		left = float64(i - 1)
	}
	right := float64(idx)
	for i := idx; i < len(mag)-1; i++ {
		if mag[i+1] <= half {
			right = float64(i) + (mag[i]-half)/(mag[i]-mag[i+1])
			break
		}
		right = float64(i + 1)
	}
	return right - left
}

func normalizeConfig(cfg Config) Config {
	if cfg.LandmarkPPM == 0 {
		cfg.LandmarkPPM = defaultLandmarkPPM
	}
	if cfg.LandmarkWindowPPM <= 0 {
		cfg.LandmarkWindowPPM = defaultLandmarkWindowPPM
	}
	if cfg.NoiseLowPPM == 0 && cfg.NoiseHighPPM == 0 {
		cfg.NoiseLowPPM = defaultNoiseLowPPM
		cfg.NoiseHighPPM = defaultNoiseHighPPM
	}
	return cfg
}
