// Package fit decomposes a processed spectrum into a weighted sum of
// named basis functions, a smooth spline baseline, and lineshape,
// phase and shift nuisance parameters. The decomposition runs as a
// staged coarse-to-fine nonlinear least squares: a reduced basis
// subset seeds the nuisance parameters, the full basis refines them.
// Amplitudes are non-negative by construction; numerical breakdown at
// any stage yields a sentinel failed record instead of an error.
package fit

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// Component is one named reference signal of a basis set, stored in
// the time domain so lineshape and shift manipulations stay cheap
// per-sample multiplications.
type Component struct {
	Name string
	FID  []complex128
}

// BasisSet is an ordered collection of uniquely named components
// sharing one acquisition grid. Amplitude scale is normalized once at
// construction and never rescaled afterwards.
type BasisSet struct {
	Meta       mrs.Metadata
	components []Component
}

// NewBasisSet validates and normalizes a basis set. Duplicate names
// and mismatched sample counts are precondition errors. Each component
// is scaled so its largest magnitude bin is one.
func NewBasisSet(meta mrs.Metadata, components []Component) (*BasisSet, error) {
	if len(components) == 0 {
		return nil, ErrEmptyBasis
	}
	seen := make(map[string]struct{}, len(components))
	out := make([]Component, 0, len(components))
	for _, c := range components {
		if c.Name == "" {
			return nil, fmt.Errorf("fit: basis component without name")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		seen[c.Name] = struct{}{}
		if len(c.FID) != meta.Samples {
			return nil, fmt.Errorf("%w: component %q has %d samples, grid has %d",
				ErrSampleMismatch, c.Name, len(c.FID), meta.Samples)
		}
		norm, err := normalizeComponent(c)
		if err != nil {
			return nil, err
		}
		out = append(out, norm)
	}
	return &BasisSet{Meta: meta, components: out}, nil
}

// Len returns the component count.
func (b *BasisSet) Len() int { return len(b.components) }

// Names returns the component names in order.
func (b *BasisSet) Names() []string {
	names := make([]string, len(b.components))
	for i, c := range b.components {
		names[i] = c.Name
	}
	return names
}

// Component returns the component at index i.
func (b *BasisSet) Component(i int) Component { return b.components[i] }

// Subset returns a basis restricted to the named components, in basis
// order. Names absent from the basis are skipped.
func (b *BasisSet) Subset(names []string) *BasisSet {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	sub := make([]Component, 0, len(names))
	for _, c := range b.components {
		if _, ok := want[c.Name]; ok {
			sub = append(sub, c)
		}
	}
	return &BasisSet{Meta: b.Meta, components: sub}
}

func normalizeComponent(c Component) (Component, error) {
	bins, err := spectral.Transform(c.FID)
	if err != nil {
		return Component{}, fmt.Errorf("fit: component %q: %w", c.Name, err)
	}
	peak := 0.0
	for _, m := range spectral.Magnitude(bins) {
		if m > peak {
			peak = m
		}
	}
	if peak == 0 || math.IsNaN(peak) || math.IsInf(peak, 0) {
		return Component{}, fmt.Errorf("fit: component %q has no finite signal", c.Name)
	}
	fid := append([]complex128(nil), c.FID...)
	spectral.Scale(fid, 1/peak)
	return Component{Name: c.Name, FID: fid}, nil
}
