package align

// Resonance is one synthetic reference component.
type Resonance struct {
	PPM       float64
	Amplitude float64
}

// Config holds alignment parameters.
type Config struct {
	// Resonances of the synthetic registration reference. The edit
	// protocol chooses these; the default covers unedited acquisitions.
	Resonances []Resonance
	// LandmarkPPM is the drift-tracking resonance.
	LandmarkPPM float64
	// LandmarkWindowPPM bounds the drift peak search around the landmark.
	LandmarkWindowPPM float64
	// SearchWindowPPM bounds the registration window.
	SearchLowPPM  float64
	SearchHighPPM float64
	// MaxShiftPPM caps the correlation lag.
	MaxShiftPPM float64
	// Iterations of target refinement.
	Iterations int
	// PackageFraction sizes the coarse-estimate packages.
	PackageFraction float64
	// ReferenceLinewidthHz of the synthetic components.
	ReferenceLinewidthHz float64
}

// DefaultConfig returns alignment defaults for unedited acquisitions.
func DefaultConfig() Config {
	return Config{
		Resonances: []Resonance{
			{PPM: 2.01, Amplitude: 1.0},  // NAA
			{PPM: 3.03, Amplitude: 0.8},  // Cr
			{PPM: 3.22, Amplitude: 0.55}, // Cho
		},
		LandmarkPPM:          3.03,
		LandmarkWindowPPM:    0.15,
		SearchLowPPM:         1.8,
		SearchHighPPM:        3.5,
		MaxShiftPPM:          0.5,
		Iterations:           3,
		PackageFraction:      0.1,
		ReferenceLinewidthHz: 4,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if len(c.Resonances) == 0 {
		c.Resonances = d.Resonances
	}
	if c.LandmarkPPM == 0 {
		c.LandmarkPPM = d.LandmarkPPM
	}
	if c.LandmarkWindowPPM <= 0 {
		c.LandmarkWindowPPM = d.LandmarkWindowPPM
	}
	if c.SearchLowPPM == 0 && c.SearchHighPPM == 0 {
		c.SearchLowPPM, c.SearchHighPPM = d.SearchLowPPM, d.SearchHighPPM
	}
	if c.MaxShiftPPM <= 0 {
		c.MaxShiftPPM = d.MaxShiftPPM
	}
	if c.Iterations <= 0 {
		c.Iterations = d.Iterations
	}
	if c.PackageFraction <= 0 || c.PackageFraction > 1 {
		c.PackageFraction = d.PackageFraction
	}
	if c.ReferenceLinewidthHz <= 0 {
		c.ReferenceLinewidthHz = d.ReferenceLinewidthHz
	}
	return c
}
