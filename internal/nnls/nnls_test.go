package nnls

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSolveUnconstrainedMatchesLS(t *testing.T) {
	a := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	})
	b := []float64{1, 2, 3}
	x, err := Solve(a, b, []bool{false, false})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if math.Abs(x[0]-1) > 1e-10 || math.Abs(x[1]-2) > 1e-10 {
		t.Fatalf("unconstrained solution mismatch: %v", x)
	}
}

func TestSolveClampsNegativeAmplitude(t *testing.T) {
	// Unconstrained solution would need x[1] < 0.
	a := mat.NewDense(2, 2, []float64{
		1, 1,
		0, 1,
	})
	b := []float64{1, -2}
	x, err := Solve(a, b, []bool{true, true})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if x[1] != 0 {
		t.Fatalf("constrained coefficient must clamp to zero, got %v", x)
	}
	if x[0] < 0 {
		t.Fatalf("remaining coefficient must stay non-negative, got %v", x)
	}
}

func TestSolveMixedConstraints(t *testing.T) {
	// Second column unconstrained and genuinely negative.
	a := mat.NewDense(2, 2, []float64{
		1, 0,
		0, 1,
	})
	b := []float64{3, -4}
	x, err := Solve(a, b, []bool{true, false})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if math.Abs(x[0]-3) > 1e-10 || math.Abs(x[1]+4) > 1e-10 {
		t.Fatalf("mixed solution mismatch: %v", x)
	}
}

func TestSolveCorrelatedColumnsStayFeasible(t *testing.T) {
	// Two nearly collinear constrained columns with a right-hand side
	// pointing away from both. Clamped coefficients do not re-enter the
	// free set, so the solution may be conservative, but it must stay
	// feasible and never do worse than the all-zero solution.
	a := mat.NewDense(3, 2, []float64{
		1, 0.99,
		1, 1.01,
		1, 1.00,
	})
	b := []float64{-1, -1, -1}
	x, err := Solve(a, b, []bool{true, true})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	for j, v := range x {
		if v < 0 {
			t.Fatalf("coefficient %d violates the constraint: %v", j, x)
		}
	}
	var resid, norm float64
	for i := 0; i < 3; i++ {
		r := b[i]
		for j := 0; j < 2; j++ {
			r -= a.At(i, j) * x[j]
		}
		resid += r * r
		norm += b[i] * b[i]
	}
	if resid > norm+1e-12 {
		t.Fatalf("residual %v exceeds the zero-solution residual %v", resid, norm)
	}
}

func TestSolveExactRecovery(t *testing.T) {
	// b built from a known non-negative combination.
	a := mat.NewDense(4, 3, []float64{
		1, 0, 1,
		0, 1, 1,
		1, 1, 0,
		0, 0, 1,
	})
	want := []float64{2, 0.5, 1.5}
	b := make([]float64, 4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			b[i] += a.At(i, j) * want[j]
		}
	}
	x, err := Solve(a, b, []bool{true, true, true})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	for j := range want {
		if math.Abs(x[j]-want[j]) > 1e-9 {
			t.Fatalf("recovery mismatch: got %v want %v", x, want)
		}
	}
}
