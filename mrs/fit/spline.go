package fit

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// BaselineBasis builds the cubic B-spline design matrix for a smooth
// baseline over the ppm points in ppm (ascending). Knots are uniform
// with the given spacing; smaller spacing makes the baseline more
// flexible. The columns form a partition of unity over the range, so
// a constant baseline is exactly representable.
func BaselineBasis(ppm []float64, knotSpacingPPM float64) (*mat.Dense, error) {
	if len(ppm) < 2 {
		return nil, fmt.Errorf("fit: baseline needs at least two points")
	}
	if knotSpacingPPM <= 0 {
		knotSpacingPPM = 0.4
	}
	span := ppm[len(ppm)-1] - ppm[0]
	if span <= 0 {
		return nil, fmt.Errorf("fit: baseline range must ascend")
	}
	segments := int(span/knotSpacingPPM + 0.5)
	if segments < 1 {
		segments = 1
	}
	coeffs := segments + 3

	basis := mat.NewDense(len(ppm), coeffs, nil)
	for i, p := range ppm {
		u := (p - ppm[0]) / span * float64(segments)
		for j := 0; j < coeffs; j++ {
			basis.Set(i, j, bspline3(u-float64(j-3)))
		}
	}
	return basis, nil
}

// bspline3 is the uniform cubic B-spline kernel with support [0, 4).
func bspline3(t float64) float64 {
	switch {
	case t < 0 || t >= 4:
		return 0
	case t < 1:
		return t * t * t / 6
	case t < 2:
		return (-3*t*t*t + 12*t*t - 12*t + 4) / 6
	case t < 3:
		return (3*t*t*t - 24*t*t + 60*t - 44) / 6
	default:
		return (4 - t) * (4 - t) * (4 - t) / 6
	}
}
