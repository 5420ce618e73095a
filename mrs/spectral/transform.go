package spectral

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Transform converts a time-domain FID into a spectrum in
// ascending-ppm order (carrier at the center bin).
func Transform(fid []complex128) ([]complex128, error) {
	n := len(fid)
	if n == 0 {
		return nil, fmt.Errorf("spectral: transform requires a non-empty FID")
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectral: failed to create FFT plan: %w", err)
	}

	raw := make([]complex128, n)
	if err := plan.Forward(raw, fid); err != nil {
		return nil, fmt.Errorf("spectral: forward FFT failed: %w", err)
	}

	// Rotate so bin 0 carries the most negative frequency offset.
	bins := make([]complex128, n)
	half := n / 2
	copy(bins, raw[half:])
	copy(bins[n-half:], raw[:half])
	return bins, nil
}

// InverseTransform converts an ascending-ppm spectrum back into a
// time-domain FID. It is the exact inverse of Transform.
func InverseTransform(bins []complex128) ([]complex128, error) {
	n := len(bins)
	if n == 0 {
		return nil, fmt.Errorf("spectral: inverse transform requires a non-empty spectrum")
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("spectral: failed to create FFT plan: %w", err)
	}

	// Undo the center rotation applied by Transform.
	raw := make([]complex128, n)
	half := n / 2
	copy(raw[half:], bins[:n-half])
	copy(raw, bins[n-half:])

	fid := make([]complex128, n)
	if err := plan.Inverse(fid, raw); err != nil {
		return nil, fmt.Errorf("spectral: inverse FFT failed: %w", err)
	}
	return fid, nil
}
