package mrs

import "fmt"

// Voxel describes the spatial geometry of the acquisition volume.
type Voxel struct {
	SizeMM   [3]float64
	CenterMM [3]float64
}

// Metadata holds the scalar acquisition parameters shared by every
// average and sub-spectrum of one signal.
type Metadata struct {
	DwellTime        float64 // seconds per sample
	Samples          int
	TransmitFreqMHz  float64
	FieldStrengthT   float64
	EchoTimeMS       float64
	RepetitionTimeMS float64
	Voxel            Voxel
}

// SpectralWidthHz returns the full sweep width 1/dwell in Hz.
func (m Metadata) SpectralWidthHz() float64 {
	if m.DwellTime <= 0 {
		return 0
	}
	return 1 / m.DwellTime
}

func (m Metadata) validate() error {
	if m.Samples <= 0 || m.DwellTime <= 0 || m.TransmitFreqMHz <= 0 {
		return fmt.Errorf("%w: samples=%d dwell=%g txfreq=%g",
			ErrInvalidMetadata, m.Samples, m.DwellTime, m.TransmitFreqMHz)
	}
	return nil
}

// Dims holds the semantic axis sizes of a raw signal. Sample count and
// dwell time are constant across averages, coils, and sub-spectra.
type Dims struct {
	Samples    int
	Averages   int
	Coils      int
	SubSpectra int
}

func (d Dims) count() int {
	return d.Samples * d.Averages * d.Coils * d.SubSpectra
}

// Combined reports whether all non-time axes have been collapsed.
func (d Dims) Combined() bool {
	return d.Averages == 1 && d.Coils == 1 && d.SubSpectra == 1
}

// Signal is a raw multi-axis time-domain acquisition. The backing
// store is one flat slice with the time axis fastest, then coil, then
// average, then sub-spectrum. Axis order is fixed at construction.
type Signal struct {
	meta     Metadata
	dims     Dims
	data     []complex128
	averaged bool
}

// NewSignal allocates a zeroed signal with the given metadata and
// dimensions. Zero averages (or any non-positive axis) is a
// precondition error, not an empty result.
func NewSignal(meta Metadata, dims Dims) (*Signal, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if dims.Averages <= 0 || dims.Coils <= 0 || dims.SubSpectra <= 0 || dims.Samples <= 0 {
		return nil, fmt.Errorf("%w: %+v", ErrEmptySignal, dims)
	}
	if dims.Samples != meta.Samples {
		return nil, fmt.Errorf("%w: dims carry %d samples, metadata %d",
			ErrDimensionMismatch, dims.Samples, meta.Samples)
	}
	return &Signal{
		meta: meta,
		dims: dims,
		data: make([]complex128, dims.count()),
	}, nil
}

// Meta returns the acquisition metadata.
func (s *Signal) Meta() Metadata { return s.meta }

// Dims returns the axis sizes.
func (s *Signal) Dims() Dims { return s.dims }

// FID returns a mutable view of one transient: sub-spectrum sub,
// average avg, coil channel coil. Indices out of range panic, matching
// slice semantics; callers index from validated loop bounds.
func (s *Signal) FID(sub, avg, coil int) []complex128 {
	n := s.dims.Samples
	off := ((sub*s.dims.Averages+avg)*s.dims.Coils + coil) * n
	return s.data[off : off+n : off+n]
}

// SetAveraged marks the signal as already combined across averages by
// an upstream loader. Alignment treats such signals as a no-op.
func (s *Signal) SetAveraged(v bool) { s.averaged = v }

// Averaged reports whether the averages were pre-combined upstream.
func (s *Signal) Averaged() bool { return s.averaged }

// Clone returns a deep copy sharing no backing store.
func (s *Signal) Clone() *Signal {
	data := make([]complex128, len(s.data))
	copy(data, s.data)
	return &Signal{meta: s.meta, dims: s.dims, data: data, averaged: s.averaged}
}
