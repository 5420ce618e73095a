package spectral

import (
	"fmt"

	"github.com/cwbudde/algo-mrs/mrs"
)

// CenterPPM is the chemical shift of the carrier frequency (water).
const CenterPPM = 4.68

// Axis maps spectrum bin indices to chemical shift. Bin 0 is the most
// upfield (lowest ppm) point; ppm increases with bin index.
type Axis struct {
	n         int
	dwell     float64
	txMHz     float64
	centerPPM float64
}

// NewAxis derives the ppm axis from acquisition metadata.
func NewAxis(meta mrs.Metadata) (*Axis, error) {
	if meta.Samples <= 0 || meta.DwellTime <= 0 || meta.TransmitFreqMHz <= 0 {
		return nil, fmt.Errorf("spectral: axis requires positive samples, dwell, and transmitter frequency: %+v", meta)
	}
	return &Axis{
		n:         meta.Samples,
		dwell:     meta.DwellTime,
		txMHz:     meta.TransmitFreqMHz,
		centerPPM: CenterPPM,
	}, nil
}

// Len returns the number of bins.
func (a *Axis) Len() int { return a.n }

// HzPerBin returns the frequency resolution.
func (a *Axis) HzPerBin() float64 {
	return 1 / (a.dwell * float64(a.n))
}

// HzPerPPM returns the conversion factor between ppm and Hz, which is
// the transmitter frequency in MHz.
func (a *Axis) HzPerPPM() float64 { return a.txMHz }

// PPM returns the chemical shift of bin i. The index may be
// fractional; interpolated peak positions use this directly.
func (a *Axis) PPM(i float64) float64 {
	offsetHz := (i - float64(a.n)/2) * a.HzPerBin()
	return offsetHz/a.txMHz + a.centerPPM
}

// Index returns the fractional bin index of a chemical shift.
func (a *Axis) Index(ppm float64) float64 {
	offsetHz := (ppm - a.centerPPM) * a.txMHz
	return offsetHz/a.HzPerBin() + float64(a.n)/2
}

// OffsetHz returns the frequency offset from the carrier for a
// chemical shift.
func (a *Axis) OffsetHz(ppm float64) float64 {
	return (ppm - a.centerPPM) * a.txMHz
}

// IndexRange returns the inclusive-exclusive bin range [lo, hi)
// covering [lowPPM, highPPM], clamped to the axis.
func (a *Axis) IndexRange(lowPPM, highPPM float64) (lo, hi int) {
	if lowPPM > highPPM {
		lowPPM, highPPM = highPPM, lowPPM
	}
	lo = int(a.Index(lowPPM))
	hi = int(a.Index(highPPM)) + 1
	if lo < 0 {
		lo = 0
	}
	if hi > a.n {
		hi = a.n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
