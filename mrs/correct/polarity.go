package correct

import (
	"fmt"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// PolarityWindow bounds the diagnostic resonance used for polarity
// detection.
type PolarityWindow struct {
	LowPPM  float64
	HighPPM float64
}

// NAAPolarityWindow is the diagnostic window for unedited and
// GABA-edited acquisitions.
var NAAPolarityWindow = PolarityWindow{LowPPM: 1.9, HighPPM: 2.1}

// CrPolarityWindow is the diagnostic window for acquisition types
// whose NAA region is perturbed by editing.
var CrPolarityWindow = PolarityWindow{LowPPM: 2.8, HighPPM: 3.2}

// CorrectPolarity detects and corrects an inverted spectrum. Within
// the diagnostic window, the signed difference between the maximum and
// the magnitude of the minimum of the real part decides the polarity;
// a negative difference flips the whole time-domain signal. The
// operation is involutive.
//
// The returned bool reports whether a flip was applied.
func CorrectPolarity(sp *mrs.Spectrum, win PolarityWindow) (*mrs.Spectrum, bool, error) {
	if sp == nil || len(sp.Bins) == 0 {
		return nil, false, fmt.Errorf("correct: polarity detection requires a non-empty spectrum")
	}
	axis, err := spectral.NewAxis(sp.Meta)
	if err != nil {
		return nil, false, fmt.Errorf("correct: %w", err)
	}
	lo, hi := axis.IndexRange(win.LowPPM, win.HighPPM)
	if hi-lo < 1 {
		return nil, false, fmt.Errorf("correct: polarity window [%g, %g] ppm is outside the spectrum",
			win.LowPPM, win.HighPPM)
	}

	maxRe, minRe := real(sp.Bins[lo]), real(sp.Bins[lo])
	for i := lo + 1; i < hi; i++ {
		v := real(sp.Bins[i])
		if v > maxRe {
			maxRe = v
		}
		if v < minRe {
			minRe = v
		}
	}

	out := sp.Clone()
	flipped := false
	if maxRe+minRe < 0 {
		flipped = true
		spectral.Scale(out.FID, -1)
		spectral.Scale(out.Bins, -1)
		out.Prov.PolarityFlipped = !out.Prov.PolarityFlipped
	}
	return out, flipped, nil
}
