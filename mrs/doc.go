// Package mrs defines the core data model for magnetic resonance
// spectroscopy processing: the multi-axis time-domain signal, the
// processed single-average spectrum, and the condition taxonomy shared
// by every pipeline stage.
//
// The package holds no algorithms. Processing stages live in the
// subpackages (spectral, align, correct, reference, edit, fit) and
// communicate exclusively through the types defined here.
package mrs
