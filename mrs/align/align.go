package align

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/cwbudde/algo-mrs/mrs"
	"github.com/cwbudde/algo-mrs/mrs/spectral"
)

// Average aligns and combines the averages of one sub-spectrum into a
// single processed spectrum candidate. Per-average frequency shifts,
// phases, weights, and landmark drift are recorded in the result's
// provenance.
//
// A single-average or pre-averaged input skips alignment entirely:
// identity shift and phase, weight 1, and drift-pre equal to
// drift-post.
func Average(sig *mrs.Signal, sub int, cond mrs.ConditionKind, cfg Config) (*mrs.Spectrum, error) {
	if sig == nil {
		return nil, fmt.Errorf("align: %w", mrs.ErrEmptySignal)
	}
	dims := sig.Dims()
	if sub < 0 || sub >= dims.SubSpectra {
		return nil, fmt.Errorf("align: sub-spectrum %d out of %d", sub, dims.SubSpectra)
	}
	cfg = cfg.normalized()

	meta := sig.Meta()
	axis, err := spectral.NewAxis(meta)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	fids := make([][]complex128, dims.Averages)
	for a := 0; a < dims.Averages; a++ {
		fids[a] = combineCoils(sig, sub, a)
	}

	if dims.Averages == 1 || sig.Averaged() {
		return identityAverage(fids, meta, axis, cond, cfg)
	}
	return registerAndAverage(fids, meta, axis, cond, cfg)
}

// combineCoils sums the coil channels of one transient. Loader-side
// coil combination normally leaves a single channel; the straight sum
// covers signals where it did not.
func combineCoils(sig *mrs.Signal, sub, avg int) []complex128 {
	dims := sig.Dims()
	out := append([]complex128(nil), sig.FID(sub, avg, 0)...)
	for c := 1; c < dims.Coils; c++ {
		ch := sig.FID(sub, avg, c)
		for t := range out {
			out[t] += ch[t]
		}
	}
	return out
}

func identityAverage(fids [][]complex128, meta mrs.Metadata, axis *spectral.Axis,
	cond mrs.ConditionKind, cfg Config) (*mrs.Spectrum, error) {
	n := len(fids)
	avg := make([]complex128, meta.Samples)
	for _, fid := range fids {
		for t := range avg {
			avg[t] += fid[t]
		}
	}
	if n > 1 {
		spectral.Scale(avg, 1/float64(n))
	}

	bins, err := spectral.Transform(avg)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	drift := make([]float64, n)
	for a, fid := range fids {
		drift[a] = landmarkPPM(fid, axis, cfg)
	}
	prov := mrs.Provenance{
		FreqShiftHz:  make([]float64, n),
		PhaseRad:     make([]float64, n),
		Weights:      make([]float64, n),
		DriftPrePPM:  drift,
		DriftPostPPM: append([]float64(nil), drift...),
		Averaged:     true,
	}
	for a := range prov.Weights {
		prov.Weights[a] = 1
	}
	return &mrs.Spectrum{Cond: cond, Meta: meta, FID: avg, Bins: bins, Prov: prov}, nil
}

func registerAndAverage(fids [][]complex128, meta mrs.Metadata, axis *spectral.Axis,
	cond mrs.ConditionKind, cfg Config) (*mrs.Spectrum, error) {
	n := len(fids)
	dwell := meta.DwellTime
	hzPerBin := axis.HzPerBin()
	maxLag := int(cfg.MaxShiftPPM * axis.HzPerPPM() / hzPerBin)
	if maxLag < 1 {
		maxLag = 1
	}
	lo, hi := axis.IndexRange(cfg.SearchLowPPM, cfg.SearchHighPPM)

	refFID := syntheticReference(axis, dwell, cfg.Resonances, cfg.ReferenceLinewidthHz)
	refBins, err := spectral.Transform(refFID)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	refMag := spectral.Magnitude(refBins)

	// Coarse stage: contiguous packages of ~10% of the averages share
	// one cross-correlation estimate against the synthetic reference.
	shiftHz := make([]float64, n)
	pkg := int(math.Round(cfg.PackageFraction * float64(n)))
	if pkg < 1 {
		pkg = 1
	}
	for start := 0; start < n; start += pkg {
		end := start + pkg
		if end > n {
			end = n
		}
		mean := make([]complex128, meta.Samples)
		for a := start; a < end; a++ {
			for t := range mean {
				mean[t] += fids[a][t]
			}
		}
		spectral.Scale(mean, 1/float64(end-start))
		bins, err := spectral.Transform(mean)
		if err != nil {
			return nil, fmt.Errorf("align: %w", err)
		}
		lag, ok := correlationShift(spectral.Magnitude(bins), refMag, lo, hi, maxLag)
		if !ok {
			lag = 0 // degenerate package, quality reflected later
		}
		for a := start; a < end; a++ {
			shiftHz[a] = -lag * hzPerBin
		}
	}

	phase := make([]float64, n)
	weights := make([]float64, n)
	for a := range weights {
		weights[a] = 1
	}

	// Refinement: register each average against the evolving weighted
	// target, then recompute outlier weights from residual magnitude.
	specs := make([][]complex128, n)
	for iter := 0; iter < cfg.Iterations; iter++ {
		for a := 0; a < n; a++ {
			fid := correctedFID(fids[a], shiftHz[a], phase[a], dwell)
			bins, err := spectral.Transform(fid)
			if err != nil {
				return nil, fmt.Errorf("align: %w", err)
			}
			specs[a] = bins
		}
		target := weightedMean(specs, weights)
		targetMag := spectral.Magnitude(target)

		residuals := make([]float64, n)
		for a := 0; a < n; a++ {
			if lag, ok := correlationShift(spectral.Magnitude(specs[a]), targetMag, lo, hi, maxLag); ok {
				shiftHz[a] -= lag * hzPerBin
			}
			// Residual phase via complex projection inside the window.
			var dot complex128
			for i := lo; i < hi; i++ {
				dot += target[i] * cmplx.Conj(specs[a][i])
			}
			if cmplx.Abs(dot) > 0 {
				phase[a] += cmplx.Phase(dot)
			}
			residuals[a] = windowResidual(specs[a], target, lo, hi)
		}
		weights = robustWeights(residuals)
	}

	// Final combination and drift bookkeeping.
	corrected := make([][]complex128, n)
	var wsum float64
	avg := make([]complex128, meta.Samples)
	for a := 0; a < n; a++ {
		corrected[a] = correctedFID(fids[a], shiftHz[a], phase[a], dwell)
		w := complex(weights[a], 0)
		for t := range avg {
			avg[t] += w * corrected[a][t]
		}
		wsum += weights[a]
	}
	if wsum > 0 {
		spectral.Scale(avg, 1/wsum)
	}
	bins, err := spectral.Transform(avg)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}

	driftPre := make([]float64, n)
	driftPost := make([]float64, n)
	for a := 0; a < n; a++ {
		driftPre[a] = landmarkPPM(fids[a], axis, cfg)
		driftPost[a] = landmarkPPM(corrected[a], axis, cfg)
	}

	prov := mrs.Provenance{
		FreqShiftHz:  shiftHz,
		PhaseRad:     phase,
		Weights:      weights,
		DriftPrePPM:  driftPre,
		DriftPostPPM: driftPost,
		Averaged:     true,
	}
	return &mrs.Spectrum{Cond: cond, Meta: meta, FID: avg, Bins: bins, Prov: prov}, nil
}

func correctedFID(fid []complex128, shiftHz, phase, dwell float64) []complex128 {
	out := append([]complex128(nil), fid...)
	spectral.ShiftFrequency(out, shiftHz, dwell)
	spectral.ApplyPhase0(out, phase)
	return out
}

func weightedMean(specs [][]complex128, weights []float64) []complex128 {
	out := make([]complex128, len(specs[0]))
	var wsum float64
	for a, s := range specs {
		w := complex(weights[a], 0)
		for i := range out {
			out[i] += w * s[i]
		}
		wsum += weights[a]
	}
	if wsum > 0 {
		spectral.Scale(out, 1/wsum)
	}
	return out
}

func windowResidual(spec, target []complex128, lo, hi int) float64 {
	var num, den float64
	for i := lo; i < hi; i++ {
		d := spec[i] - target[i]
		num += real(d)*real(d) + imag(d)*imag(d)
		den += real(target[i])*real(target[i]) + imag(target[i])*imag(target[i])
	}
	if den == 0 {
		return 0
	}
	return math.Sqrt(num / den)
}

// robustWeights maps residuals to weights in [0,1]: monotonically
// decreasing in the residual, Cauchy-shaped around the median, and
// normalized so the best average carries weight 1.
func robustWeights(residuals []float64) []float64 {
	med := median(residuals)
	if med <= 0 {
		med = 1
	}
	out := make([]float64, len(residuals))
	maxW := 0.0
	for i, r := range residuals {
		x := r / med
		out[i] = 1 / (1 + x*x)
		if out[i] > maxW {
			maxW = out[i]
		}
	}
	if maxW > 0 {
		for i := range out {
			out[i] /= maxW
		}
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return 0.5 * (s[mid-1] + s[mid])
}

// landmarkPPM locates the drift landmark peak of one transient.
func landmarkPPM(fid []complex128, axis *spectral.Axis, cfg Config) float64 {
	bins, err := spectral.Transform(fid)
	if err != nil {
		return math.NaN()
	}
	mag := spectral.Magnitude(bins)
	lo, hi := axis.IndexRange(cfg.LandmarkPPM-cfg.LandmarkWindowPPM, cfg.LandmarkPPM+cfg.LandmarkWindowPPM)
	idx, _ := spectral.FindPeak(mag, lo, hi)
	if idx < 0 {
		return math.NaN()
	}
	return axis.PPM(spectral.RefineParabolic(mag, idx))
}
