package fit

import "math"

// Status tracks the staged fit through its states. The happy path is
// Unfit -> Referenced -> PreliminaryReduced -> PreliminaryFull ->
// Complete; Failed is absorbing and reachable from every stage on
// numerical breakdown.
type Status int

const (
	StatusUnfit Status = iota
	StatusReferenced
	StatusPreliminaryReduced
	StatusPreliminaryFull
	StatusComplete
	StatusFailed
)

// String returns the stage name.
func (s Status) String() string {
	switch s {
	case StatusUnfit:
		return "unfit"
	case StatusReferenced:
		return "referenced"
	case StatusPreliminaryReduced:
		return "preliminary-reduced"
	case StatusPreliminaryFull:
		return "preliminary-full"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Parameters is the packaged fit result for one spectrum.
type Parameters struct {
	Status Status

	// Amplitudes holds the non-negative basis weights by name. A
	// failed fit carries NaN for every component.
	Amplitudes map[string]float64
	// Baseline holds the unconstrained spline coefficients over the
	// fit range, ordered upfield to downfield.
	Baseline []float64

	// Phi0 and Phi1 are the zero- and first-order phase terms
	// (radians, radians per ppm).
	Phi0 float64
	Phi1 float64
	// GaussLwHz is the Gaussian linewidth shared by all components.
	GaussLwHz float64
	// ShiftHz is the global frequency shift applied to the basis.
	ShiftHz float64

	// LorentzLwHz and ComponentShiftHz are the per-component Lorentzian
	// linewidth and residual frequency shift.
	LorentzLwHz      map[string]float64
	ComponentShiftHz map[string]float64

	// RefShiftPPM and RefLinewidthHz carry the referencing outcome
	// through to reporting.
	RefShiftPPM    float64
	RefLinewidthHz float64
}

// failedParams is the sentinel record for a numerically failed fit.
func failedParams(names []string) Parameters {
	amp := make(map[string]float64, len(names))
	for _, n := range names {
		amp[n] = math.NaN()
	}
	return Parameters{
		Status:     StatusFailed,
		Amplitudes: amp,
		Phi0:       math.NaN(),
		Phi1:       math.NaN(),
		GaussLwHz:  math.NaN(),
		ShiftHz:    math.NaN(),
	}
}
