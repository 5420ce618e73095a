// Package correct implements the post-averaging correction stages:
// eddy-current correction against a water-unsuppressed reference,
// subspace (Hankel-SVD) residual water removal with bounded order
// degradation, and polarity detection.
package correct
