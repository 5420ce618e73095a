// Package clinalg supplies the small set of complex-matrix operations
// the processing core needs on top of gonum: Hermitian eigenpairs,
// complex least squares, and general complex eigenvalues. All three
// use the standard real block embedding
//
//	A = X + iY  ->  [[X, -Y], [Y, X]]
//
// so the heavy lifting stays inside gonum/mat.
package clinalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var errDimension = errors.New("clinalg: dimension mismatch")

// embed returns the real 2m x 2n block embedding of a complex m x n
// row-major matrix.
func embed(a []complex128, m, n int) *mat.Dense {
	out := mat.NewDense(2*m, 2*n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			re := real(a[i*n+j])
			im := imag(a[i*n+j])
			out.Set(i, j, re)
			out.Set(i, n+j, -im)
			out.Set(m+i, j, im)
			out.Set(m+i, n+j, re)
		}
	}
	return out
}

// TopEigenHermitian returns the k largest eigenvalues of the Hermitian
// matrix h (n x n, row-major) together with an orthonormal set of
// complex eigenvectors.
//
// The real embedding of a Hermitian matrix is symmetric with every
// eigenvalue doubled; the duplicated real eigenvectors are collapsed
// back to k distinct complex ones by Gram-Schmidt over the candidates.
func TopEigenHermitian(h []complex128, n, k int) ([]float64, [][]complex128, error) {
	if len(h) != n*n {
		return nil, nil, fmt.Errorf("%w: have %d entries for %dx%d", errDimension, len(h), n, n)
	}
	if k <= 0 || k > n {
		return nil, nil, fmt.Errorf("clinalg: eigenpair count out of range: %d of %d", k, n)
	}

	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			re := real(h[i*n+j])
			im := imag(h[i*n+j])
			sym.SetSym(i, j, re)
			sym.SetSym(n+i, n+j, re)
			// Upper-triangle entries of the antisymmetric imaginary block.
			sym.SetSym(i, n+j, -im)
			if i != j {
				sym.SetSym(j, n+i, im)
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, nil, errors.New("clinalg: symmetric eigendecomposition failed")
	}
	allVals := eig.Values(nil)
	var allVecs mat.Dense
	eig.VectorsTo(&allVecs)

	order := make([]int, len(allVals))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return allVals[order[a]] > allVals[order[b]] })

	vals := make([]float64, 0, k)
	vecs := make([][]complex128, 0, k)
	for _, idx := range order {
		if len(vecs) == k {
			break
		}
		cand := make([]complex128, n)
		for i := 0; i < n; i++ {
			cand[i] = complex(allVecs.At(i, idx), allVecs.At(n+i, idx))
		}
		// Project out the eigenvectors already collected; the embedding
		// yields each complex eigenvector twice (rotated by i).
		for _, v := range vecs {
			var dot complex128
			for i := range v {
				dot += cmplx.Conj(v[i]) * cand[i]
			}
			for i := range cand {
				cand[i] -= dot * v[i]
			}
		}
		norm := 0.0
		for _, c := range cand {
			norm += real(c)*real(c) + imag(c)*imag(c)
		}
		norm = math.Sqrt(norm)
		if norm < 1e-10 {
			continue
		}
		for i := range cand {
			cand[i] /= complex(norm, 0)
		}
		vals = append(vals, allVals[idx])
		vecs = append(vecs, cand)
	}
	if len(vecs) < k {
		return nil, nil, fmt.Errorf("clinalg: only %d independent eigenvectors of %d requested", len(vecs), k)
	}
	return vals, vecs, nil
}

// SolveLS returns the least-squares solution of the complex system
// A x ~= b with A given as an m x n row-major slice.
func SolveLS(a []complex128, m, n int, b []complex128) ([]complex128, error) {
	if len(a) != m*n || len(b) != m {
		return nil, fmt.Errorf("%w: a=%d (%dx%d) b=%d", errDimension, len(a), m, n, len(b))
	}

	ar := embed(a, m, n)
	br := mat.NewVecDense(2*m, nil)
	for i := 0; i < m; i++ {
		br.SetVec(i, real(b[i]))
		br.SetVec(m+i, imag(b[i]))
	}

	var x mat.VecDense
	if err := x.SolveVec(ar, br); err != nil {
		return nil, fmt.Errorf("clinalg: least squares solve failed: %w", err)
	}
	out := make([]complex128, n)
	for j := 0; j < n; j++ {
		out[j] = complex(x.AtVec(j), x.AtVec(n+j))
	}
	return out, nil
}

// Eigenvalues returns the eigenvalues of the real embedding of the
// complex n x n matrix z. The embedding carries each eigenvalue of z
// together with its conjugate, so the result has 2n entries; callers
// treat them as candidates and let a later amplitude fit discard the
// spurious half.
func Eigenvalues(z []complex128, n int) ([]complex128, error) {
	if len(z) != n*n {
		return nil, fmt.Errorf("%w: have %d entries for %dx%d", errDimension, len(z), n, n)
	}
	var eig mat.Eigen
	if !eig.Factorize(embed(z, n, n), mat.EigenNone) {
		return nil, errors.New("clinalg: eigendecomposition failed")
	}
	return eig.Values(nil), nil
}
