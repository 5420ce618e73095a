// Package align combines repeated transient acquisitions into one
// averaged spectrum. A coarse per-package cross-correlation against a
// synthetic multi-resonance reference seeds an iterative registration
// that refines per-average frequency and phase against an evolving
// weighted target, down-weighting outlier averages instead of
// rejecting them. Drift of a landmark resonance is recorded per
// average before and after correction.
package align
