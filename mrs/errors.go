package mrs

import "errors"

var (
	// ErrEmptySignal reports a signal with no averages or no samples.
	ErrEmptySignal = errors.New("mrs: signal has no data")
	// ErrDimensionMismatch reports inconsistent axis dimensions.
	ErrDimensionMismatch = errors.New("mrs: axis dimensions are inconsistent")
	// ErrInvalidMetadata reports non-positive sampling metadata.
	ErrInvalidMetadata = errors.New("mrs: invalid sampling metadata")
)
