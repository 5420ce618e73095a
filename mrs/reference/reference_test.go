package reference

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

func makeSpectrum(t *testing.T, meta mrs.Metadata, resonances [][3]float64) *mrs.Spectrum {
	t.Helper()
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		t.Fatalf("NewAxis failed: %v", err)
	}
	fid := make([]complex128, meta.Samples)
	for _, r := range resonances { // [ppm, amp, lwHz]
		off := axis.OffsetHz(r[0])
		for i := range fid {
			tt := float64(i) * meta.DwellTime
			fid[i] += complex(r[1], 0) *
				cmplx.Exp(complex(-math.Pi*r[2]*tt, 2*math.Pi*off*tt))
		}
	}
	bins, err := spectral.Transform(fid)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	return &mrs.Spectrum{Cond: mrs.CondOff, Meta: meta, FID: fid, Bins: bins}
}

func TestFindDetectsKnownShift(t *testing.T) {
	meta := testMeta(2048)
	// NAA deliberately 0.06 ppm downfield of canonical.
	sp := makeSpectrum(t, meta, [][3]float64{{2.07, 1, 5}})

	res, err := Find(sp, DefaultConfig())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if math.Abs(res.ShiftPPM-0.06) > 0.005 {
		t.Fatalf("shift mismatch: got %f ppm want 0.06", res.ShiftPPM)
	}
	if math.Abs(res.LinewidthHz-5) > 1.5 {
		t.Fatalf("linewidth mismatch: got %f Hz want ~5", res.LinewidthHz)
	}
}

func TestApplyMovesLandmarkToCanonical(t *testing.T) {
	meta := testMeta(2048)
	sp := makeSpectrum(t, meta, [][3]float64{{2.07, 1, 5}})

	res, err := Find(sp, DefaultConfig())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	shifted, err := Apply(sp, res)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if shifted.Prov.RefShiftPPM != res.ShiftPPM {
		t.Fatalf("provenance shift mismatch: %f != %f", shifted.Prov.RefShiftPPM, res.ShiftPPM)
	}

	again, err := Find(shifted, DefaultConfig())
	if err != nil {
		t.Fatalf("second Find failed: %v", err)
	}
	if math.Abs(again.ShiftPPM) > 0.01 {
		t.Fatalf("residual shift after referencing: %f ppm", again.ShiftPPM)
	}
}

func TestDoubleLorentzianSeparatesPair(t *testing.T) {
	meta := testMeta(2048)
	// Cr and Cho both shifted by +0.04 ppm.
	sp := makeSpectrum(t, meta, [][3]float64{
		{3.07, 1, 5},
		{3.26, 0.7, 5},
	})

	res, err := Find(sp, CrCholineConfig())
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if math.Abs(res.ShiftPPM-0.04) > 0.01 {
		t.Fatalf("pair shift mismatch: got %f ppm want 0.04", res.ShiftPPM)
	}
}

func TestFindRejectsEmptyWindow(t *testing.T) {
	meta := testMeta(512)
	sp := makeSpectrum(t, meta, nil) // all-zero spectrum
	if _, err := Find(sp, DefaultConfig()); err == nil {
		t.Fatal("all-zero spectrum must not yield a reference peak")
	}
}
