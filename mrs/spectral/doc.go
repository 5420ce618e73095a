// Package spectral provides the frequency-domain primitives every
// processing stage builds on: the ppm axis, FID/spectrum transforms,
// range extraction, phase and frequency manipulation, DC correction,
// and apodization.
//
// The package does not implement FFT itself; transforms go through
// algo-fft plans. Spectra are kept in ascending-ppm order with the
// carrier frequency at the center bin.
package spectral
