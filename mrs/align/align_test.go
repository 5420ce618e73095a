package align

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

func testMeta(n int) mrs.Metadata {
	return mrs.Metadata{
		DwellTime:       1.0 / 2000.0,
		Samples:         n,
		TransmitFreqMHz: 123.2,
		FieldStrengthT:  2.89,
	}
}

// fillMetabolite writes the default three-resonance profile into fid,
// optionally detuned by driftHz and rotated by phase.
func fillMetabolite(fid []complex128, axis *spectral.Axis, dwell, driftHz, phase float64) {
	for i := range fid {
		fid[i] = 0
	}
	rot := cmplx.Exp(complex(0, phase))
	for _, r := range DefaultConfig().Resonances {
		off := axis.OffsetHz(r.PPM) + driftHz
		for t := range fid {
			tt := float64(t)
			fid[t] += rot * complex(r.Amplitude, 0) *
				cmplx.Exp(complex(-math.Pi*5*dwell*tt, 2*math.Pi*off*tt*dwell))
		}
	}
}

func TestSingleAverageIsNoOp(t *testing.T) {
	meta := testMeta(2048)
	sig, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: 1, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}
	axis, _ := spectral.NewAxis(meta)
	fillMetabolite(sig.FID(0, 0, 0), axis, meta.DwellTime, 0, 0)

	sp, err := Average(sig, 0, mrs.CondOff, Config{})
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	if len(sp.Prov.Weights) != 1 || sp.Prov.Weights[0] != 1 {
		t.Fatalf("single average weight must be exactly 1: %v", sp.Prov.Weights)
	}
	if sp.Prov.FreqShiftHz[0] != 0 || sp.Prov.PhaseRad[0] != 0 {
		t.Fatalf("single average must carry identity correction: %+v", sp.Prov)
	}

	wantBins, err := spectral.Transform(sig.FID(0, 0, 0))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	for i := range wantBins {
		if sp.Bins[i] != wantBins[i] {
			t.Fatalf("spectrum must be bit-equal to transformed input at bin %d", i)
		}
	}
	if sp.Prov.DriftPrePPM[0] != sp.Prov.DriftPostPPM[0] {
		t.Fatalf("no-op alignment must report identical pre/post drift")
	}
}

func TestPreAveragedSignalSkipsAlignment(t *testing.T) {
	meta := testMeta(1024)
	sig, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: 4, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}
	axis, _ := spectral.NewAxis(meta)
	for a := 0; a < 4; a++ {
		fillMetabolite(sig.FID(0, a, 0), axis, meta.DwellTime, 0, 0)
	}
	sig.SetAveraged(true)

	sp, err := Average(sig, 0, mrs.CondOff, Config{})
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	for a := 0; a < 4; a++ {
		if sp.Prov.FreqShiftHz[a] != 0 || sp.Prov.PhaseRad[a] != 0 || sp.Prov.Weights[a] != 1 {
			t.Fatalf("pre-averaged signal must carry identity corrections: %+v", sp.Prov)
		}
		if sp.Prov.DriftPrePPM[a] != sp.Prov.DriftPostPPM[a] {
			t.Fatalf("pre-averaged drift pre/post must match")
		}
	}
}

func TestAlignmentRemovesDriftAndPhase(t *testing.T) {
	meta := testMeta(2048)
	axis, _ := spectral.NewAxis(meta)
	const nAvg = 16
	sig, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: nAvg, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}
	for a := 0; a < nAvg; a++ {
		drift := 3.0 * (float64(a)/(nAvg-1) - 0.5) // -1.5..+1.5 Hz
		phase := 0.3 * math.Sin(float64(a))
		fillMetabolite(sig.FID(0, a, 0), axis, meta.DwellTime, drift, phase)
	}

	sp, err := Average(sig, 0, mrs.CondOff, Config{})
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}

	// Post-alignment drift must be tighter than pre-alignment drift.
	spreadPre := spread(sp.Prov.DriftPrePPM)
	spreadPost := spread(sp.Prov.DriftPostPPM)
	if !(spreadPost < spreadPre/2) {
		t.Fatalf("alignment did not reduce drift spread: pre=%g post=%g", spreadPre, spreadPost)
	}

	// The averaged landmark must sit at the Cr position.
	mag := spectral.Magnitude(sp.Bins)
	lo, hi := axis.IndexRange(2.9, 3.15)
	idx, _ := spectral.FindPeak(mag, lo, hi)
	got := axis.PPM(spectral.RefineParabolic(mag, idx))
	if math.Abs(got-3.03) > 0.01 {
		t.Fatalf("averaged landmark at %f ppm, want 3.03", got)
	}

	// Weights bounded to [0,1] and normalized to max 1.
	maxW := 0.0
	for _, w := range sp.Prov.Weights {
		if w < 0 || w > 1 {
			t.Fatalf("weight out of bounds: %v", sp.Prov.Weights)
		}
		if w > maxW {
			maxW = w
		}
	}
	if math.Abs(maxW-1) > 1e-12 {
		t.Fatalf("weights must be normalized to max 1, got %f", maxW)
	}
}

func TestAlignmentDownweightsOutlier(t *testing.T) {
	meta := testMeta(2048)
	axis, _ := spectral.NewAxis(meta)
	const nAvg = 8
	sig, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: nAvg, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}
	for a := 0; a < nAvg; a++ {
		fillMetabolite(sig.FID(0, a, 0), axis, meta.DwellTime, 0, 0)
	}
	// Corrupt the last average with a large spurious component.
	bad := sig.FID(0, nAvg-1, 0)
	for t2 := range bad {
		tt := float64(t2)
		bad[t2] += complex(5, 0) * cmplx.Exp(complex(-math.Pi*30*meta.DwellTime*tt,
			2*math.Pi*axis.OffsetHz(2.6)*tt*meta.DwellTime))
	}

	sp, err := Average(sig, 0, mrs.CondOff, Config{})
	if err != nil {
		t.Fatalf("Average failed: %v", err)
	}
	wBad := sp.Prov.Weights[nAvg-1]
	for a := 0; a < nAvg-1; a++ {
		if sp.Prov.Weights[a] <= wBad {
			t.Fatalf("outlier average must carry the smallest weight: %v", sp.Prov.Weights)
		}
	}
}

func TestZeroAverageSignalRejected(t *testing.T) {
	meta := testMeta(512)
	if _, err := mrs.NewSignal(meta, mrs.Dims{Samples: 512, Averages: 0, Coils: 1, SubSpectra: 1}); err == nil {
		t.Fatal("zero-average signal must be rejected at construction")
	}
}

func spread(v []float64) float64 {
	min, max := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	if min > max {
		return 0
	}
	return max - min
}
