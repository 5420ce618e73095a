package quality

import (
	"math"
	"math/cmplx"
	"math/rand"
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

// noisyNAA builds a single NAA Lorentzian plus white complex noise of
// the given per-sample sigma.
func noisyNAA(t *testing.T, meta mrs.Metadata, lwHz, sigma float64, seed int64) *mrs.Spectrum {
	t.Helper()
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		t.Fatalf("NewAxis failed: %v", err)
	}
	rng := rand.New(rand.NewSource(seed))
	off := axis.OffsetHz(2.01)
	fid := make([]complex128, meta.Samples)
	for i := range fid {
		tt := float64(i) * meta.DwellTime
		fid[i] = cmplx.Exp(complex(-math.Pi*lwHz*tt, 2*math.Pi*off*tt)) +
			complex(rng.NormFloat64()*sigma, rng.NormFloat64()*sigma)
	}
	bins, err := spectral.Transform(fid)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	return &mrs.Spectrum{Cond: mrs.CondOff, Meta: meta, FID: fid, Bins: bins}
}

func TestAnalyzeMatchesAnalyticExpectations(t *testing.T) {
	meta := testMeta(2048)
	const lw = 5.0
	const sigma = 1e-3
	sp := noisyNAA(t, meta, lw, sigma, 1)

	m, err := Analyze(sp, Config{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if math.Abs(m.LandmarkPPM-2.01) > 0.01 {
		t.Fatalf("landmark position: got %f ppm want 2.01", m.LandmarkPPM)
	}

	// The magnitude profile of a Lorentzian of absorption FWHM lw
	// crosses half maximum at sqrt(3)*lw.
	wantFWHM := math.Sqrt(3) * lw
	if math.Abs(m.FWHMHz-wantFWHM)/wantFWHM > 0.05 {
		t.Fatalf("FWHM: got %f Hz want %f", m.FWHMHz, wantFWHM)
	}
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		t.Fatalf("NewAxis failed: %v", err)
	}
	if math.Abs(m.FWHMPPM-m.FWHMHz/axis.HzPerPPM()) > 1e-12 {
		t.Fatalf("FWHM unit mismatch: %f ppm vs %f Hz", m.FWHMPPM, m.FWHMHz)
	}

	// Peak height of the discrete Lorentzian is the geometric decay
	// sum; bin noise sigma scales with sqrt(n).
	wantHeight := 1 / (1 - math.Exp(-math.Pi*lw*meta.DwellTime))
	wantSNR := wantHeight / (sigma * math.Sqrt(float64(meta.Samples)))
	if math.Abs(m.SNR-wantSNR)/wantSNR > 0.15 {
		t.Fatalf("SNR: got %f want %f", m.SNR, wantSNR)
	}
}

func TestSNRScalesInverselyWithNoise(t *testing.T) {
	meta := testMeta(2048)
	low, err := Analyze(noisyNAA(t, meta, 5, 1e-3, 7), Config{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	high, err := Analyze(noisyNAA(t, meta, 5, 2e-3, 7), Config{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	ratio := low.SNR / high.SNR
	if math.Abs(ratio-2) > 0.3 {
		t.Fatalf("SNR noise scaling: got ratio %f want ~2", ratio)
	}
}

func TestAnalyzeRejectsEmptySpectrum(t *testing.T) {
	if _, err := Analyze(nil, Config{}); err == nil {
		t.Fatal("nil spectrum must fail")
	}
	if _, err := Analyze(&mrs.Spectrum{Meta: testMeta(16)}, Config{}); err == nil {
		t.Fatal("spectrum without bins must fail")
	}
}

func TestSummarizeDrift(t *testing.T) {
	pre := []float64{3.00, 3.02, 3.06, 3.04}
	post := []float64{3.03, 3.03, 3.03, 3.03}
	s := SummarizeDrift(pre, post)

	if math.Abs(s.MeanPrePPM-3.03) > 1e-12 {
		t.Fatalf("pre mean: got %f want 3.03", s.MeanPrePPM)
	}
	if math.Abs(s.MaxExcursionPrePPM-0.03) > 1e-12 {
		t.Fatalf("pre excursion: got %f want 0.03", s.MaxExcursionPrePPM)
	}
	if s.MaxExcursionPostPPM != 0 {
		t.Fatalf("post excursion: got %f want 0", s.MaxExcursionPostPPM)
	}

	empty := SummarizeDrift(nil, nil)
	if empty != (DriftSummary{}) {
		t.Fatalf("empty drift summary: got %+v", empty)
	}
}
