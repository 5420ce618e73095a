package mrs

// Provenance records everything the processing pipeline did to arrive
// at one spectrum. It is carried forward by value and never mutated by
// downstream consumers.
type Provenance struct {
	// Per contributing average, in acquisition order.
	FreqShiftHz []float64
	PhaseRad    []float64
	Weights     []float64

	// Landmark peak position per average, before and after alignment.
	DriftPrePPM  []float64
	DriftPostPPM []float64

	// Referencing result applied to this condition.
	RefShiftPPM    float64
	RefLinewidthHz float64

	Averaged        bool
	SwitchOrder     bool
	EddyCorrected   bool
	WaterRemoved    bool
	PolarityFlipped bool
}

// Clone deep-copies the per-average slices.
func (p Provenance) Clone() Provenance {
	out := p
	out.FreqShiftHz = append([]float64(nil), p.FreqShiftHz...)
	out.PhaseRad = append([]float64(nil), p.PhaseRad...)
	out.Weights = append([]float64(nil), p.Weights...)
	out.DriftPrePPM = append([]float64(nil), p.DriftPrePPM...)
	out.DriftPostPPM = append([]float64(nil), p.DriftPostPPM...)
	return out
}

// Spectrum is the single-average, corrected spectrum for one
// experimental condition. FID and Bins are kept consistent by the
// stage that produced the spectrum; Bins are stored in ascending-ppm
// order (DC centered).
//
// Stages never mutate their input Spectrum: each stage clones, edits
// the clone, and returns it. This keeps batch processing of many
// datasets safely parallel.
type Spectrum struct {
	Cond ConditionKind
	Meta Metadata
	FID  []complex128
	Bins []complex128
	Prov Provenance
}

// Clone returns a deep copy sharing no backing store.
func (sp *Spectrum) Clone() *Spectrum {
	out := &Spectrum{
		Cond: sp.Cond,
		Meta: sp.Meta,
		FID:  append([]complex128(nil), sp.FID...),
		Bins: append([]complex128(nil), sp.Bins...),
		Prov: sp.Prov.Clone(),
	}
	return out
}
