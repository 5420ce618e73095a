package fit

import "errors"

var (
	// ErrDuplicateName reports a basis set with two components of the
	// same name.
	ErrDuplicateName = errors.New("fit: duplicate basis component name")

	// ErrEmptyBasis reports a basis set without components.
	ErrEmptyBasis = errors.New("fit: empty basis set")

	// ErrSampleMismatch reports a basis whose sample count does not
	// match the data.
	ErrSampleMismatch = errors.New("fit: basis sample count does not match data")

	// ErrBasisCoverage reports a basis whose frequency axis does not
	// span the data axis, so resampling would extrapolate.
	ErrBasisCoverage = errors.New("fit: basis axis does not cover data axis")
)
