package fit

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// Compatible reports whether the basis can be resampled onto the
// given acquisition grid: both axes must be well formed and the basis
// axis must cover the data axis. Batch callers run this before any
// per-dataset work so an inconsistent basis fails the whole job up
// front.
func Compatible(b *BasisSet, meta mrs.Metadata) error {
	if b == nil || b.Len() == 0 {
		return ErrEmptyBasis
	}
	if b.Meta == meta {
		return nil
	}
	srcAxis, err := spectral.NewAxis(b.Meta)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	dstAxis, err := spectral.NewAxis(meta)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	srcLo, srcHi := srcAxis.PPM(0), srcAxis.PPM(float64(srcAxis.Len()-1))
	dstLo, dstHi := dstAxis.PPM(0), dstAxis.PPM(float64(dstAxis.Len()-1))
	// One source bin of slack at the edges: a finer destination grid
	// legitimately ends inside the last coarse bin.
	edge := srcAxis.HzPerBin() / srcAxis.HzPerPPM()
	if dstLo < srcLo-edge || dstHi > srcHi+edge {
		return fmt.Errorf("%w: basis spans [%.2f, %.2f] ppm, data needs [%.2f, %.2f]",
			ErrBasisCoverage, srcLo, srcHi, dstLo, dstHi)
	}
	return nil
}

// Resample interpolates a basis set onto the acquisition grid of the
// data, so fit and basis share sample count and frequency axis. The
// real and imaginary spectrum channels are interpolated separately
// with piecewise-cubic splines. The basis axis must cover the data
// axis; extrapolation is a precondition error.
func Resample(b *BasisSet, meta mrs.Metadata) (*BasisSet, error) {
	if err := Compatible(b, meta); err != nil {
		return nil, err
	}
	if b.Meta == meta {
		return b, nil
	}
	srcAxis, err := spectral.NewAxis(b.Meta)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	dstAxis, err := spectral.NewAxis(meta)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	srcPPM := make([]float64, srcAxis.Len())
	for i := range srcPPM {
		srcPPM[i] = srcAxis.PPM(float64(i))
	}
	dstPPM := make([]float64, dstAxis.Len())
	for i := range dstPPM {
		dstPPM[i] = dstAxis.PPM(float64(i))
	}

	out := make([]Component, 0, b.Len())
	for _, c := range b.components {
		bins, err := spectral.Transform(c.FID)
		if err != nil {
			return nil, fmt.Errorf("fit: component %q: %w", c.Name, err)
		}
		re, err := resampleChannel(srcPPM, dstPPM, spectral.RealPart(bins))
		if err != nil {
			return nil, fmt.Errorf("fit: component %q: %w", c.Name, err)
		}
		im, err := resampleChannel(srcPPM, dstPPM, imagPart(bins))
		if err != nil {
			return nil, fmt.Errorf("fit: component %q: %w", c.Name, err)
		}
		resampled := make([]complex128, len(dstPPM))
		for i := range resampled {
			resampled[i] = complex(re[i], im[i])
		}
		fid, err := spectral.InverseTransform(resampled)
		if err != nil {
			return nil, fmt.Errorf("fit: component %q: %w", c.Name, err)
		}
		out = append(out, Component{Name: c.Name, FID: fid})
	}
	return &BasisSet{Meta: meta, components: out}, nil
}

func resampleChannel(srcX, dstX, srcY []float64) ([]float64, error) {
	var spline interp.AkimaSpline
	if err := spline.Fit(srcX, srcY); err != nil {
		return nil, err
	}
	out := make([]float64, len(dstX))
	for i, x := range dstX {
		out[i] = spline.Predict(x)
	}
	return out, nil
}

func imagPart(in []complex128) []float64 {
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = imag(c)
	}
	return out
}
