package edit

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// Combined holds the classified conditions and the derived spectra.
type Combined struct {
	Off  *mrs.Spectrum
	On   *mrs.Spectrum
	Sum  *mrs.Spectrum // OFF + ON
	Diff *mrs.Spectrum // ON - OFF
}

// Combine aligns the ON condition onto OFF using the shared reporter
// signal, then forms the sum and difference spectra. The switch-order
// flag of the inputs propagates to both derived spectra.
func Combine(off, on *mrs.Spectrum, p Protocol) (*Combined, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil protocol", ErrUnsupportedTarget)
	}
	if off == nil || on == nil || len(off.FID) != len(on.FID) || len(off.FID) == 0 {
		return nil, fmt.Errorf("edit: combination requires two matching spectra")
	}
	axis, err := spectral.NewAxis(off.Meta)
	if err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}

	onAligned, err := alignToReporter(off, on, p.ReporterWindow(), axis)
	if err != nil {
		return nil, err
	}

	sum := derive(off, onAligned, mrs.CondSum, func(a, b complex128) complex128 { return a + b })
	diff := derive(off, onAligned, mrs.CondDiff1, func(a, b complex128) complex128 { return b - a })
	if sum.Bins, err = spectral.Transform(sum.FID); err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	if diff.Bins, err = spectral.Transform(diff.FID); err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	return &Combined{Off: off.Clone(), On: onAligned, Sum: sum, Diff: diff}, nil
}

// alignToReporter registers ON onto OFF by minimizing the reporter
// residual: a magnitude cross-correlation fixes the frequency, a
// complex projection fixes the phase.
func alignToReporter(off, on *mrs.Spectrum, win Window, axis *spectral.Axis) (*mrs.Spectrum, error) {
	lo, hi := axis.IndexRange(win.LowPPM, win.HighPPM)
	out := on.Clone()
	if hi-lo < 3 {
		return out, nil // degenerate reporter window, keep as-is
	}

	magOff := spectral.Magnitude(off.Bins)
	magOn := spectral.Magnitude(on.Bins)
	maxLag := int(0.2 * axis.HzPerPPM() / axis.HzPerBin())
	if maxLag < 1 {
		maxLag = 1
	}
	shiftHz := 0.0
	if lag, ok := reporterShift(magOn, magOff, lo, hi, maxLag); ok {
		shiftHz = -lag * axis.HzPerBin()
	}
	spectral.ShiftFrequency(out.FID, shiftHz, out.Meta.DwellTime)

	bins, err := spectral.Transform(out.FID)
	if err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	var dot complex128
	for i := lo; i < hi; i++ {
		dot += off.Bins[i] * cmplx.Conj(bins[i])
	}
	if cmplx.Abs(dot) > 0 {
		spectral.ApplyPhase0(out.FID, cmplx.Phase(dot))
	}
	if out.Bins, err = spectral.Transform(out.FID); err != nil {
		return nil, fmt.Errorf("edit: %w", err)
	}
	return out, nil
}

func derive(off, on *mrs.Spectrum, cond mrs.ConditionKind, op func(a, b complex128) complex128) *mrs.Spectrum {
	fid := make([]complex128, len(off.FID))
	for i := range fid {
		fid[i] = op(off.FID[i], on.FID[i])
	}
	return &mrs.Spectrum{
		Cond: cond,
		Meta: off.Meta,
		FID:  fid,
		Prov: mrs.Provenance{
			Averaged:       true,
			SwitchOrder:    off.Prov.SwitchOrder,
			RefShiftPPM:    off.Prov.RefShiftPPM,
			RefLinewidthHz: off.Prov.RefLinewidthHz,
		},
	}
}

// reporterShift mirrors the alignment correlation on the reporter
// window only.
func reporterShift(mag, ref []float64, lo, hi, maxLag int) (float64, bool) {
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
	return spectral.RefineParabolic(score, best) - float64(maxLag), true
}
