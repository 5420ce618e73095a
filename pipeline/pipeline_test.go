package pipeline

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/edit"
	"github.com/cwbudde/algo-mrs/mrs/fit"
	"github.com/cwbudde/algo-mrs/mrs/reference"
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

// twoAverageNAA builds a two-average, single-coil acquisition with one
// NAA Lorentzian. The second average is deliberately displaced in
// frequency and phase so alignment has work to do, and a trace of
// deterministic noise keeps the SNR estimate meaningful.
func twoAverageNAA(t *testing.T, meta mrs.Metadata, ppm, lwHz float64) *mrs.Signal {
	t.Helper()
	sig, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: 2, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		t.Fatalf("NewAxis failed: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	off := axis.OffsetHz(ppm)
	for avg := 0; avg < 2; avg++ {
		driftHz, phase := 0.0, 0.0
		if avg == 1 {
			driftHz, phase = 2.0, 0.3
		}
		fid := sig.FID(0, avg, 0)
		for i := range fid {
			tt := float64(i) * meta.DwellTime
			fid[i] = cmplx.Exp(complex(-math.Pi*lwHz*tt, 2*math.Pi*(off+driftHz)*tt+phase)) +
				complex(rng.NormFloat64()*5e-4, rng.NormFloat64()*5e-4)
		}
	}
	return sig
}

func naaBasis(t *testing.T, meta mrs.Metadata) *fit.BasisSet {
	t.Helper()
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		t.Fatalf("NewAxis failed: %v", err)
	}
	off := axis.OffsetHz(2.01)
	fid := make([]complex128, meta.Samples)
	for i := range fid {
		tt := float64(i) * meta.DwellTime
		fid[i] = cmplx.Exp(complex(-math.Pi*5*tt, 2*math.Pi*off*tt))
	}
	bs, err := fit.NewBasisSet(meta, []fit.Component{{Name: "NAA", FID: fid}})
	if err != nil {
		t.Fatalf("NewBasisSet failed: %v", err)
	}
	return bs
}

func TestRunEndToEndUnedited(t *testing.T) {
	meta := testMeta(2048)
	// NAA deliberately 0.03 ppm downfield; referencing must land it on
	// 2.01.
	const lw = 5.0
	sig := twoAverageNAA(t, meta, 2.04, lw)

	runner := NewRunner(WithWorkers(1))
	results, err := runner.Run(context.Background(), []Dataset{{
		Name:   "synthetic-naa",
		Signal: sig,
		Basis:  naaBasis(t, meta),
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("result count: got %d want 1", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("dataset failed: %v", res.Err)
	}

	sp, ok := res.Spectra[mrs.CondOff]
	if !ok {
		t.Fatal("no processed OFF spectrum in result")
	}
	if !sp.Prov.Averaged {
		t.Fatal("spectrum not marked averaged")
	}

	m, ok := res.Quality[mrs.CondOff]
	if !ok {
		t.Fatal("no quality metrics in result")
	}
	if math.Abs(m.LandmarkPPM-2.01) > 0.01 {
		t.Fatalf("landmark after referencing: got %f ppm want 2.01", m.LandmarkPPM)
	}
	wantFWHM := math.Sqrt(3) * lw
	if math.Abs(m.FWHMHz-wantFWHM)/wantFWHM > 0.05 {
		t.Fatalf("FWHM: got %f Hz want %f", m.FWHMHz, wantFWHM)
	}
	if m.SNR < 100 {
		t.Fatalf("implausibly low SNR for near-noiseless input: %f", m.SNR)
	}

	p, ok := res.Fits[mrs.CondOff]
	if !ok {
		t.Fatal("no fit parameters in result")
	}
	if p.Status != fit.StatusComplete {
		t.Fatalf("fit status: got %v want complete", p.Status)
	}
	if p.Amplitudes["NAA"] <= 0 {
		t.Fatalf("NAA amplitude not recovered: %f", p.Amplitudes["NAA"])
	}
}

func TestRunRecordsPerDatasetFailure(t *testing.T) {
	meta := testMeta(2048)
	good := twoAverageNAA(t, meta, 2.01, 5)

	// An all-zero signal passes batch validation but fails referencing;
	// the batch must still finish and the good dataset must succeed.
	bad, err := mrs.NewSignal(meta, mrs.Dims{Samples: meta.Samples, Averages: 1, Coils: 1, SubSpectra: 1})
	if err != nil {
		t.Fatalf("NewSignal failed: %v", err)
	}

	runner := NewRunner(WithWorkers(2))
	results, err := runner.Run(context.Background(), []Dataset{
		{Name: "good", Signal: good},
		{Name: "bad", Signal: bad},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("good dataset failed: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatal("bad dataset must record an error")
	}
}

func TestRunFailsFastOnBatchInconsistency(t *testing.T) {
	meta := testMeta(1024)
	sig := twoAverageNAA(t, meta, 2.01, 5)

	runner := NewRunner()
	_, err := runner.Run(context.Background(), []Dataset{{
		Name:   "edited-without-subspectra",
		Signal: sig,
		Target: edit.TargetGABA,
	}})
	if err == nil {
		t.Fatal("edited target without sub-spectra must fail batch validation")
	}

	if _, err := runner.Run(context.Background(), nil); err == nil {
		t.Fatal("empty batch must fail")
	}
}

func TestRunFailsFastOnBasisMismatch(t *testing.T) {
	meta := testMeta(1024)
	sig := twoAverageNAA(t, meta, 2.01, 5)

	// A basis acquired with an eightfold coarser dwell spans a far
	// narrower ppm range than the data axis and can never be resampled
	// onto it. The batch must refuse it before any per-dataset work.
	coarse := meta
	coarse.DwellTime = 8.0 / 2000.0
	runner := NewRunner(WithWorkers(1))
	_, err := runner.Run(context.Background(), []Dataset{{
		Name:   "coarse-basis",
		Signal: sig,
		Basis:  naaBasis(t, coarse),
	}})
	if !errors.Is(err, fit.ErrBasisCoverage) {
		t.Fatalf("mismatched basis: got %v want ErrBasisCoverage", err)
	}
}

func TestRunSurfacesFitPreconditionFailure(t *testing.T) {
	meta := testMeta(2048)
	sig := twoAverageNAA(t, meta, 2.04, 5)

	// A fit window too narrow for the basis passes batch validation but
	// makes the fit stage refuse; the result must carry that error
	// while quality metrics are still produced.
	runner := NewRunner(WithWorkers(1), WithFitConfig(fit.Config{
		RangeLowPPM:  2.0,
		RangeHighPPM: 2.01,
	}))
	results, err := runner.Run(context.Background(), []Dataset{{
		Name:   "narrow-window",
		Signal: sig,
		Basis:  naaBasis(t, meta),
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	res := results[0]
	if res.Err == nil {
		t.Fatal("fit precondition failure must be recorded in the result")
	}
	if len(res.Fits) != 0 {
		t.Fatalf("no fit parameters expected, got %d", len(res.Fits))
	}
	if _, ok := res.Quality[mrs.CondOff]; !ok {
		t.Fatal("quality metrics must survive a failed fit stage")
	}
}

func TestEditedReferencingHonorsExplicitConfig(t *testing.T) {
	// Without an explicit configuration edited datasets reference on
	// creatine/choline; an explicit one wins even when it equals the
	// unedited default.
	if got, want := NewRunner().editedRefConfig(), reference.CrCholineConfig(); got != want {
		t.Fatalf("default edited referencing: got %+v want %+v", got, want)
	}
	explicit := reference.DefaultConfig()
	if got := NewRunner(WithReferenceConfig(explicit)).editedRefConfig(); got != explicit {
		t.Fatalf("explicit edited referencing: got %+v want %+v", got, explicit)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	meta := testMeta(1024)
	datasets := make([]Dataset, 4)
	for i := range datasets {
		datasets[i] = Dataset{Signal: twoAverageNAA(t, meta, 2.01, 5)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(WithWorkers(1))
	results, err := runner.Run(ctx, datasets)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled run: got %v want context.Canceled", err)
	}
	if len(results) != len(datasets) {
		t.Fatalf("result count: got %d want %d", len(results), len(datasets))
	}
	cancelled := 0
	for _, res := range results {
		if errors.Is(res.Err, context.Canceled) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Fatal("no result carries the cancellation error")
	}
}
