// Package pipeline runs the full processing chain over a batch of
// acquisitions: averaging and alignment, eddy-current and water
// correction, polarity, referencing, edit combination, model fitting,
// and quality metrics. Datasets are processed in parallel; the stages
// within one dataset run strictly in order. A failing dataset records
// its error and never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/cwbudde/algo-mrs/measure/quality"
	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/align"
	"github.com/cwbudde/algo-mrs/mrs/correct"
	"github.com/cwbudde/algo-mrs/mrs/edit"
	"github.com/cwbudde/algo-mrs/mrs/fit"
	"github.com/cwbudde/algo-mrs/mrs/reference"
)

// Dataset is one acquisition to process.
type Dataset struct {
	Name string
	// Signal is the metabolite acquisition.
	Signal *mrs.Signal
	// Reference is the unsuppressed-water reference, already coil- and
	// average-combined. Optional; without it eddy-current correction
	// is skipped.
	Reference *mrs.Signal
	// Target selects the editing scheme; TargetNone processes a single
	// unedited condition.
	Target edit.Target
	// Basis enables model fitting when present.
	Basis *fit.BasisSet
}

// Result is the outcome for one dataset, written exactly once.
type Result struct {
	Name string
	// Err is set when any stage failed; the remaining fields then hold
	// whatever was produced before the failure.
	Err error

	Spectra map[mrs.ConditionKind]*mrs.Spectrum
	Fits    map[mrs.ConditionKind]fit.Parameters
	Quality map[mrs.ConditionKind]quality.Metrics
	Drift   quality.DriftSummary
}

// Runner executes batches with a fixed configuration.
type Runner struct {
	workers  int
	obs      Observer
	alignCfg align.Config
	eddyCfg  correct.EddyConfig
	waterCfg correct.WaterConfig
	refCfg   reference.Config
	// refSet records an explicit WithReferenceConfig call; without it
	// edited datasets switch to creatine/choline referencing.
	refSet  bool
	fitCfg  fit.Config
	qualCfg quality.Config
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the dataset-level parallelism.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithObserver installs a progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.obs = o
		}
	}
}

// WithAlignConfig overrides the alignment configuration.
func WithAlignConfig(cfg align.Config) Option {
	return func(r *Runner) { r.alignCfg = cfg }
}

// WithEddyConfig overrides the eddy-current configuration.
func WithEddyConfig(cfg correct.EddyConfig) Option {
	return func(r *Runner) { r.eddyCfg = cfg }
}

// WithWaterConfig overrides the residual-water filter configuration.
func WithWaterConfig(cfg correct.WaterConfig) Option {
	return func(r *Runner) { r.waterCfg = cfg }
}

// WithReferenceConfig overrides the referencing configuration for all
// datasets, edited ones included.
func WithReferenceConfig(cfg reference.Config) Option {
	return func(r *Runner) {
		r.refCfg = cfg
		r.refSet = true
	}
}

// WithFitConfig overrides the model fit configuration.
func WithFitConfig(cfg fit.Config) Option {
	return func(r *Runner) { r.fitCfg = cfg }
}

// WithQualityConfig overrides the quality metric configuration.
func WithQualityConfig(cfg quality.Config) Option {
	return func(r *Runner) { r.qualCfg = cfg }
}

// NewRunner creates a batch runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		workers:  runtime.GOMAXPROCS(0),
		obs:      NopObserver{},
		alignCfg: align.DefaultConfig(),
		eddyCfg:  correct.DefaultEddyConfig(),
		waterCfg: correct.DefaultWaterConfig(),
		refCfg:   reference.DefaultConfig(),
		fitCfg:   fit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes all datasets. Batch-level consistency problems fail
// fast before any per-dataset work; per-dataset failures land in the
// corresponding Result. Cancellation is checked between datasets; on
// cancellation the unprocessed results carry the context error.
func (r *Runner) Run(ctx context.Context, datasets []Dataset) ([]Result, error) {
	if err := validateBatch(datasets); err != nil {
		return nil, err
	}

	results := make([]Result, len(datasets))
	done := make([]bool, len(datasets))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = r.process(idx, datasets[idx])
				done[idx] = true
			}
		}()
	}

feed:
	for i := range datasets {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if !done[i] {
				results[i] = Result{Name: datasetName(datasets[i], i), Err: err}
			}
		}
		return results, err
	}
	return results, nil
}

// validateBatch runs the consistency checks that must hold before any
// per-dataset work starts.
func validateBatch(datasets []Dataset) error {
	if len(datasets) == 0 {
		return fmt.Errorf("pipeline: empty batch")
	}
	for i, ds := range datasets {
		name := datasetName(ds, i)
		if ds.Signal == nil {
			return fmt.Errorf("pipeline: dataset %s has no signal", name)
		}
		meta := ds.Signal.Meta()
		if ds.Reference != nil {
			if !ds.Reference.Dims().Combined() {
				return fmt.Errorf("pipeline: dataset %s: %w", name, correct.ErrNotCombined)
			}
			if ds.Reference.Meta().Samples != meta.Samples {
				return fmt.Errorf("pipeline: dataset %s: reference has %d samples, signal %d",
					name, ds.Reference.Meta().Samples, meta.Samples)
			}
		}
		if ds.Target != edit.TargetNone && ds.Signal.Dims().SubSpectra < 2 {
			return fmt.Errorf("pipeline: dataset %s: edited target %s needs two sub-spectra, have %d",
				name, ds.Target, ds.Signal.Dims().SubSpectra)
		}
		if _, err := edit.ForTarget(ds.Target); err != nil {
			return fmt.Errorf("pipeline: dataset %s: %w", name, err)
		}
		if ds.Basis != nil {
			if err := fit.Compatible(ds.Basis, meta); err != nil {
				return fmt.Errorf("pipeline: dataset %s: %w", name, err)
			}
		}
	}
	return nil
}

func datasetName(ds Dataset, i int) string {
	if ds.Name != "" {
		return ds.Name
	}
	return fmt.Sprintf("dataset-%d", i)
}

// job carries one dataset through its stages.
type job struct {
	r    *Runner
	ds   Dataset
	name string
	res  *Result
}

// fail records the first error of the dataset and reports every one to
// the observer.
func (j *job) fail(stage string, err error) {
	if j.res.Err == nil {
		j.res.Err = fmt.Errorf("%s: %w", stage, err)
	}
	j.r.obs.OnError(j.name, stage, err)
}

func (j *job) stage(name string) {
	j.r.obs.OnStage(j.name, name)
}

// process runs every stage for one dataset. Errors are recorded, not
// propagated, so the batch keeps going.
func (r *Runner) process(idx int, ds Dataset) Result {
	res := Result{
		Name:    datasetName(ds, idx),
		Spectra: make(map[mrs.ConditionKind]*mrs.Spectrum),
		Fits:    make(map[mrs.ConditionKind]fit.Parameters),
		Quality: make(map[mrs.ConditionKind]quality.Metrics),
	}
	j := &job{r: r, ds: ds, name: res.Name, res: &res}

	protocol, err := edit.ForTarget(ds.Target)
	if err != nil {
		j.fail("protocol", err)
		return res
	}
	if protocol == nil {
		j.runUnedited()
	} else {
		j.runEdited(protocol)
	}
	return res
}

func (j *job) runUnedited() {
	sp, err := align.Average(j.ds.Signal, 0, mrs.CondOff, j.r.alignCfg)
	if err != nil {
		j.fail("align", err)
		return
	}
	j.stage("align")

	sp = j.correct(sp, correct.NAAPolarityWindow)
	if sp == nil {
		return
	}

	ref, err := reference.Find(sp, j.r.refCfg)
	if err != nil {
		j.fail("reference", err)
		return
	}
	if sp, err = reference.Apply(sp, ref); err != nil {
		j.fail("reference", err)
		return
	}
	j.stage("reference")
	j.res.Spectra[sp.Cond] = sp

	j.fitAndMeasure(sp, j.r.qualCfg)
	j.res.Drift = quality.SummarizeDrift(sp.Prov.DriftPrePPM, sp.Prov.DriftPostPPM)
}

func (j *job) runEdited(protocol edit.Protocol) {
	alignCfg := j.r.alignCfg
	if len(protocol.AlignResonances()) > 0 {
		alignCfg.Resonances = protocol.AlignResonances()
	}

	first, err := align.Average(j.ds.Signal, 0, mrs.CondOff, alignCfg)
	if err != nil {
		j.fail("align", err)
		return
	}
	second, err := align.Average(j.ds.Signal, 1, mrs.CondOn, alignCfg)
	if err != nil {
		j.fail("align", err)
		return
	}
	j.stage("align")

	if first = j.correct(first, correct.CrPolarityWindow); first == nil {
		return
	}
	if second = j.correct(second, correct.CrPolarityWindow); second == nil {
		return
	}

	off, on, _, err := edit.Classify(first, second, protocol)
	if err != nil {
		j.fail("classify", err)
		return
	}
	cmb, err := edit.Combine(off, on, protocol)
	if err != nil {
		j.fail("combine", err)
		return
	}
	j.stage("combine")

	// One referencing decision for all derived conditions, determined
	// on the sum, so paired spectra stay mutually aligned.
	refRes, err := reference.Find(cmb.Sum, j.r.editedRefConfig())
	if err != nil {
		j.fail("reference", err)
		return
	}
	for _, sp := range []*mrs.Spectrum{cmb.Off, cmb.On, cmb.Sum, cmb.Diff} {
		shifted, err := reference.Apply(sp, refRes)
		if err != nil {
			j.fail("reference", err)
			return
		}
		j.res.Spectra[shifted.Cond] = shifted
	}
	j.stage("reference")

	qw := protocol.QualityWindow()
	qualCfg := j.r.qualCfg
	if qualCfg.LandmarkPPM == 0 {
		qualCfg.LandmarkPPM = 0.5 * (qw.LowPPM + qw.HighPPM)
		qualCfg.LandmarkWindowPPM = 0.5 * (qw.HighPPM - qw.LowPPM)
	}
	j.fitAndMeasure(j.res.Spectra[mrs.CondOff], qualCfg)
	j.fitAndMeasure(j.res.Spectra[mrs.CondDiff1], qualCfg)
	j.res.Drift = quality.SummarizeDrift(off.Prov.DriftPrePPM, off.Prov.DriftPostPPM)
}

// correct applies eddy-current, water and polarity corrections to a
// single condition. Returns nil after recording the failure.
func (j *job) correct(sp *mrs.Spectrum, polarity correct.PolarityWindow) *mrs.Spectrum {
	if j.ds.Reference != nil {
		corrected, refSpec, err := correct.EddyCurrent(sp, j.ds.Reference, j.r.eddyCfg)
		if err != nil {
			j.fail("eddy", err)
			return nil
		}
		sp = corrected
		j.res.Spectra[mrs.CondRef] = refSpec
		j.stage("eddy")
	}

	sp, err := correct.RemoveWater(sp, j.r.waterCfg)
	if err != nil {
		j.fail("water", err)
		return nil
	}
	j.stage("water")

	sp, _, err = correct.CorrectPolarity(sp, polarity)
	if err != nil {
		j.fail("polarity", err)
		return nil
	}
	return sp
}

// editedRefConfig returns the referencing configuration for edited
// datasets: the explicitly configured one when present, otherwise the
// creatine/choline default suited to spectra without a reliable NAA
// landmark.
func (r *Runner) editedRefConfig() reference.Config {
	if r.refSet {
		return r.refCfg
	}
	return reference.CrCholineConfig()
}

// fitAndMeasure runs the model fit (when a basis is configured) and
// the quality metrics for one spectrum. A numerical fit failure still
// records its sentinel parameters; precondition errors from either
// stage land in Result.Err while the remaining stages keep running.
func (j *job) fitAndMeasure(sp *mrs.Spectrum, qualCfg quality.Config) {
	if sp == nil {
		return
	}
	if j.ds.Basis != nil {
		basis, err := fit.Resample(j.ds.Basis, sp.Meta)
		if err == nil {
			var params fit.Parameters
			if params, err = fit.Fit(sp, basis, j.r.fitCfg); err == nil {
				j.res.Fits[sp.Cond] = params
				j.stage("fit")
			}
		}
		if err != nil {
			j.fail("fit", err)
		}
	}
	m, err := quality.Analyze(sp, qualCfg)
	if err != nil {
		j.fail("quality", err)
		return
	}
	j.res.Quality[sp.Cond] = m
	j.stage("quality")
}
