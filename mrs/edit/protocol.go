// Package edit classifies interleaved edited sub-spectra as
// edit-OFF/edit-ON, aligns them to each other, and forms the derived
// sum and difference spectra. Acquisition-type specifics (diagnostic
// windows, reporter signal, registration resonances) live behind the
// Protocol strategy, selected once at configuration time.
package edit

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-mrs/mrs/align"
)

// ErrUnsupportedTarget reports an editing target this build cannot
// classify. Failing fast here beats silently misclassifying.
var ErrUnsupportedTarget = errors.New("edit: unsupported editing target")

// Target names the edited metabolite scheme.
type Target int

const (
	// TargetNone marks unedited acquisitions; the edit stage is
	// skipped entirely.
	TargetNone Target = iota
	// TargetGABA is MEGA-edited GABA.
	TargetGABA
	// TargetGSH is MEGA-edited glutathione.
	TargetGSH
	// TargetHERMES is the four-condition GABA+GSH scheme.
	TargetHERMES
	// TargetHERCULES is the extended multi-metabolite scheme.
	TargetHERCULES
)

// String returns the acquisition scheme name.
func (t Target) String() string {
	switch t {
	case TargetNone:
		return "unedited"
	case TargetGABA:
		return "mega-gaba"
	case TargetGSH:
		return "mega-gsh"
	case TargetHERMES:
		return "hermes"
	case TargetHERCULES:
		return "hercules"
	}
	return "unknown"
}

// Window is a ppm interval.
type Window struct {
	LowPPM  float64
	HighPPM float64
}

// Protocol supplies the acquisition-type specific pieces of
// classification and combination.
type Protocol interface {
	// Target returns the editing scheme.
	Target() Target
	// ClassifyWindow is the region the ON editing pulse saturates;
	// the sub-spectrum with the larger magnitude there is OFF.
	ClassifyWindow() Window
	// ReporterWindow holds the signal shared by both conditions used
	// to align ON onto OFF.
	ReporterWindow() Window
	// QualityWindow is the region downstream quality metrics inspect.
	QualityWindow() Window
	// AlignResonances are the synthetic registration components safe
	// to use under this editing scheme.
	AlignResonances() []align.Resonance
}

type protocol struct {
	target   Target
	classify Window
	reporter Window
	quality  Window
	res      []align.Resonance
}

func (p *protocol) Target() Target                     { return p.target }
func (p *protocol) ClassifyWindow() Window             { return p.classify }
func (p *protocol) ReporterWindow() Window             { return p.reporter }
func (p *protocol) QualityWindow() Window              { return p.quality }
func (p *protocol) AlignResonances() []align.Resonance { return p.res }

// crCho keeps registration away from edited regions.
var crCho = []align.Resonance{
	{PPM: 3.03, Amplitude: 1.0},
	{PPM: 3.22, Amplitude: 0.7},
}

// ForTarget returns the protocol for an editing target. TargetNone
// yields (nil, nil): unedited acquisitions have no edit stage.
func ForTarget(t Target) (Protocol, error) {
	switch t {
	case TargetNone:
		return nil, nil
	case TargetGABA:
		// The 1.9 ppm editing pulse saturates the NAA region.
		return &protocol{
			target:   t,
			classify: Window{1.9, 2.1},
			reporter: Window{2.9, 3.1},
			quality:  Window{2.8, 3.2},
			res:      crCho,
		}, nil
	case TargetGSH:
		// The 4.56 ppm editing pulse perturbs the downfield region.
		return &protocol{
			target:   t,
			classify: Window{4.4, 4.7},
			reporter: Window{2.9, 3.1},
			quality:  Window{2.8, 3.2},
			res:      crCho,
		}, nil
	case TargetHERMES, TargetHERCULES:
		// Interleaved pairs of the multiplexed schemes classify on the
		// GABA-type window; the reporter stays on creatine.
		return &protocol{
			target:   t,
			classify: Window{1.9, 2.1},
			reporter: Window{2.9, 3.1},
			quality:  Window{2.8, 3.2},
			res:      crCho,
		}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedTarget, int(t))
}
