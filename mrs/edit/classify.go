package edit

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// Classify labels two interleaved sub-spectra as edit-OFF and edit-ON.
// Inside the protocol's diagnostic window the magnitude difference
// between the candidates is inspected; the candidate on the positive
// side of the largest deviation is OFF (the ON pulse saturates the
// window). switchOrder reports that the physical acquisition order
// (first, second) did not match the semantic (OFF, ON) order; the
// flag propagates into both returned spectra and every derived
// spectrum built from them.
//
// The rule is deterministic and order-invariant: swapping the inputs
// flips switchOrder and nothing else.
func Classify(first, second *mrs.Spectrum, p Protocol) (off, on *mrs.Spectrum, switchOrder bool, err error) {
	if p == nil {
		return nil, nil, false, fmt.Errorf("%w: nil protocol", ErrUnsupportedTarget)
	}
	if first == nil || second == nil || len(first.Bins) == 0 || len(second.Bins) == 0 {
		return nil, nil, false, fmt.Errorf("edit: classification requires two non-empty spectra")
	}
	if len(first.Bins) != len(second.Bins) {
		return nil, nil, false, fmt.Errorf("edit: sub-spectra disagree on bin count: %d != %d",
			len(first.Bins), len(second.Bins))
	}

	axis, err := spectral.NewAxis(first.Meta)
	if err != nil {
		return nil, nil, false, fmt.Errorf("edit: %w", err)
	}
	win := p.ClassifyWindow()
	lo, hi := axis.IndexRange(win.LowPPM, win.HighPPM)
	if hi-lo < 1 {
		return nil, nil, false, fmt.Errorf("edit: diagnostic window [%g, %g] ppm outside spectrum",
			win.LowPPM, win.HighPPM)
	}

	magFirst := spectral.Magnitude(first.Bins[lo:hi])
	magSecond := spectral.Magnitude(second.Bins[lo:hi])
	var peakDev float64
	for i := range magFirst {
		d := magFirst[i] - magSecond[i]
		if math.Abs(d) > math.Abs(peakDev) {
			peakDev = d
		}
	}
	if peakDev == 0 {
		// Identical magnitudes across the whole diagnostic window: fall
		// back to the first full-spectrum magnitude difference, so both
		// input orders still agree on the assignment. Fully identical
		// spectra classify in input order.
		fullFirst := spectral.Magnitude(first.Bins)
		fullSecond := spectral.Magnitude(second.Bins)
		for i := range fullFirst {
			if fullFirst[i] != fullSecond[i] {
				peakDev = fullFirst[i] - fullSecond[i]
				break
			}
		}
	}

	if peakDev >= 0 {
		off, on, switchOrder = first.Clone(), second.Clone(), false
	} else {
		off, on, switchOrder = second.Clone(), first.Clone(), true
	}
	off.Cond = mrs.CondOff
	on.Cond = mrs.CondOn
	off.Prov.SwitchOrder = switchOrder
	on.Prov.SwitchOrder = switchOrder
	return off, on, switchOrder, nil
}
