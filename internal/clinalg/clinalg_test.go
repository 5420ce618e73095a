package clinalg

import (
	"math"
	"math/cmplx"
	"sort"
	"testing"
)

func TestTopEigenHermitianDiagonal(t *testing.T) {
	// Diagonal Hermitian matrix with distinct eigenvalues.
	n := 4
	h := make([]complex128, n*n)
	want := []float64{5, 3, 2, 1}
	h[0*n+0] = 5
	h[1*n+1] = 1
	h[2*n+2] = 3
	h[3*n+3] = 2

	vals, vecs, err := TopEigenHermitian(h, n, 2)
	if err != nil {
		t.Fatalf("TopEigenHermitian failed: %v", err)
	}
	if math.Abs(vals[0]-want[0]) > 1e-8 || math.Abs(vals[1]-want[1]) > 1e-8 {
		t.Fatalf("eigenvalues mismatch: got %v", vals)
	}
	// Leading eigenvector must be e0 up to a unit phase.
	if cmplx.Abs(vecs[0][0]) < 1-1e-8 {
		t.Fatalf("leading eigenvector not aligned with e0: %v", vecs[0])
	}
	// Orthonormality.
	var dot complex128
	for i := range vecs[0] {
		dot += cmplx.Conj(vecs[0][i]) * vecs[1][i]
	}
	if cmplx.Abs(dot) > 1e-8 {
		t.Fatalf("eigenvectors not orthogonal: dot=%v", dot)
	}
}

func TestTopEigenHermitianComplex(t *testing.T) {
	// H = v v^H + 0.5 w w^H with orthogonal complex v, w.
	n := 3
	v := []complex128{complex(1, 0) / complex(math.Sqrt2, 0), complex(0, 1) / complex(math.Sqrt2, 0), 0}
	w := []complex128{0, 0, 1}
	h := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			h[i*n+j] = v[i]*cmplx.Conj(v[j]) + 0.5*w[i]*cmplx.Conj(w[j])
		}
	}
	vals, vecs, err := TopEigenHermitian(h, n, 2)
	if err != nil {
		t.Fatalf("TopEigenHermitian failed: %v", err)
	}
	if math.Abs(vals[0]-1) > 1e-8 || math.Abs(vals[1]-0.5) > 1e-8 {
		t.Fatalf("eigenvalues mismatch: got %v", vals)
	}
	// |<vec0, v>| must be 1 up to phase.
	var dot complex128
	for i := range v {
		dot += cmplx.Conj(vecs[0][i]) * v[i]
	}
	if math.Abs(cmplx.Abs(dot)-1) > 1e-8 {
		t.Fatalf("leading eigenvector misaligned: |dot|=%f", cmplx.Abs(dot))
	}
}

func TestSolveLSExact(t *testing.T) {
	// Overdetermined system with exact solution x = (2, -1i).
	a := []complex128{
		1, 0,
		0, 1,
		1, 1,
	}
	xWant := []complex128{2, complex(0, -1)}
	b := []complex128{2, complex(0, -1), complex(2, -1)}

	x, err := SolveLS(a, 3, 2, b)
	if err != nil {
		t.Fatalf("SolveLS failed: %v", err)
	}
	for i := range xWant {
		if cmplx.Abs(x[i]-xWant[i]) > 1e-8 {
			t.Fatalf("solution mismatch at %d: got %v want %v", i, x[i], xWant[i])
		}
	}
}

func TestEigenvaluesDiagonal(t *testing.T) {
	z := []complex128{
		complex(0.9, 0.1), 0,
		0, complex(0.5, -0.3),
	}
	vals, err := Eigenvalues(z, 2)
	if err != nil {
		t.Fatalf("Eigenvalues failed: %v", err)
	}
	if len(vals) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(vals))
	}
	// The candidate set is {z00, conj(z00), z11, conj(z11)}.
	got := append([]complex128(nil), vals...)
	sort.Slice(got, func(i, j int) bool {
		if real(got[i]) != real(got[j]) {
			return real(got[i]) < real(got[j])
		}
		return imag(got[i]) < imag(got[j])
	})
	want := []complex128{
		complex(0.5, -0.3), complex(0.5, 0.3),
		complex(0.9, -0.1), complex(0.9, 0.1),
	}
	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > 1e-8 {
			t.Fatalf("eigenvalue mismatch at %d: got %v want %v", i, got[i], want[i])
		}
	}
}
