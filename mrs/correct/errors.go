package correct

import "errors"

var (
	// ErrNotCombined reports a reference signal that still carries
	// multiple averages, coils, or sub-spectra. The caller must
	// pre-combine before eddy-current correction.
	ErrNotCombined = errors.New("correct: reference signal is not combined to a single spectrum")
	// ErrRetryExhausted reports that every degradation step of a
	// bounded retry produced a non-finite result.
	ErrRetryExhausted = errors.New("correct: bounded retry exhausted without a finite result")
)
