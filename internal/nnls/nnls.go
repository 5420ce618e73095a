// Package nnls solves partially non-negative linear least squares
// problems with a backward active-set method on gonum/mat. The model
// fit uses it to keep metabolite amplitudes non-negative while the
// baseline spline coefficients stay unconstrained.
package nnls

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNoColumns reports a system with no free columns left.
var ErrNoColumns = errors.New("nnls: no columns")

// Solve returns x minimizing ||A x - b|| subject to x[j] >= 0 for
// every j with nonneg[j] true. Unconstrained columns may take any
// sign.
//
// The method starts from the unconstrained solution and repeatedly
// clamps the most negative constrained coefficient to zero, re-solving
// on the remaining columns. Each pass removes one column, so at most
// n re-solves occur. Clamped coefficients never re-enter the free set,
// so for strongly correlated constrained columns the result is
// feasible but not necessarily the least-squares optimum. The fit's
// basis columns are peak-normalized and well separated in frequency,
// which keeps the correlation small.
func Solve(a *mat.Dense, b []float64, nonneg []bool) ([]float64, error) {
	m, n := a.Dims()
	if n == 0 {
		return nil, ErrNoColumns
	}
	if len(b) != m {
		return nil, fmt.Errorf("nnls: rhs length %d does not match %d rows", len(b), m)
	}
	if len(nonneg) != n {
		return nil, fmt.Errorf("nnls: constraint mask length %d does not match %d columns", len(nonneg), n)
	}

	bv := mat.NewVecDense(m, b)
	active := make([]bool, n) // true = clamped to zero
	x := make([]float64, n)

	for pass := 0; pass <= n; pass++ {
		free := make([]int, 0, n)
		for j := 0; j < n; j++ {
			if !active[j] {
				free = append(free, j)
			}
		}
		if len(free) == 0 {
			for j := range x {
				x[j] = 0
			}
			return x, nil
		}

		sub := mat.NewDense(m, len(free), nil)
		for k, j := range free {
			for i := 0; i < m; i++ {
				sub.Set(i, k, a.At(i, j))
			}
		}
		var sol mat.VecDense
		if err := sol.SolveVec(sub, bv); err != nil {
			return nil, fmt.Errorf("nnls: subproblem solve failed: %w", err)
		}

		worst := -1
		worstVal := 0.0
		for k, j := range free {
			v := sol.AtVec(k)
			if nonneg[j] && v < worstVal {
				worst = j
				worstVal = v
			}
		}
		if worst < 0 {
			for j := range x {
				x[j] = 0
			}
			for k, j := range free {
				x[j] = sol.AtVec(k)
			}
			return x, nil
		}
		active[worst] = true
	}
	return nil, errors.New("nnls: active-set iteration did not converge")
}
