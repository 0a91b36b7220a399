package trajectory

import (
	"errors"
	"fmt"
)

// Alignment pairs one probe sample with the reference position at the same
// instant.
type Alignment struct {
	// Index of the probe sample
	Index int

	Probe     Sample
	Reference Sample

	// Deviation is the distance between Probe and Reference under the
	// metric used for the computation
	Deviation float64
}

// DeviationObserver receives one record per aligned probe sample, in probe
// order. Useful for diagnostics; it must not retain or modify the samples.
type DeviationObserver func(Alignment)

type options struct {
	metric         Metric
	observer       DeviationObserver
	skipOutOfRange bool
}

// Option configures ComputeDeviations and ComputeAligned.
type Option func(*options)

// WithMetric selects the distance metric. The default is PlanarDegrees.
func WithMetric(m Metric) Option {
	return func(o *options) { o.metric = m }
}

// WithObserver attaches a diagnostic sink.
func WithObserver(fn DeviationObserver) Option {
	return func(o *options) { o.observer = fn }
}

// SkipOutOfRange drops probe samples that fall outside the reference time
// span instead of failing. Dropped samples are absent from the result; the
// remaining alignments keep their original probe Index.
func SkipOutOfRange() Option {
	return func(o *options) { o.skipOutOfRange = true }
}

// ComputeAligned walks every probe sample, aligns the reference trajectory to
// its timestamp with Interpolate and records the distance between the two.
//
// Both trajectories must be non-empty and should overlap in time. Without
// SkipOutOfRange the first probe sample outside the reference span fails the
// whole computation with an error matching ErrOutOfRange, and the result has
// exactly len(probe) entries on success.
func ComputeAligned(probe, ref Trajectory, opts ...Option) ([]Alignment, error) {
	o := options{metric: PlanarDegrees}
	for _, opt := range opts {
		opt(&o)
	}

	if len(probe) == 0 {
		return nil, fmt.Errorf("probe: %w", ErrEmptyInput)
	}
	if len(ref) == 0 {
		return nil, fmt.Errorf("reference: %w: %w", ErrNotFound, ErrEmptyInput)
	}

	out := make([]Alignment, 0, len(probe))
	for i := 0; i < len(probe); i++ {
		p := probe[i]
		r, err := Interpolate(p.Time, ref)
		if err != nil {
			if o.skipOutOfRange && errors.Is(err, ErrOutOfRange) {
				continue
			}
			return nil, fmt.Errorf("probe sample %d: %w", i, err)
		}

		a := Alignment{
			Index:     i,
			Probe:     p,
			Reference: r,
			Deviation: o.metric.Distance(r, p),
		}
		if o.observer != nil {
			o.observer(a)
		}
		out = append(out, a)
	}

	if len(out) == 0 {
		first, last, _ := ref.Span()
		return nil, fmt.Errorf("no probe sample overlaps reference [%d, %d]: %w", first, last, ErrOutOfRange)
	}
	return out, nil
}

// ComputeDeviations returns one deviation per probe sample. See
// ComputeAligned for the contract.
func ComputeDeviations(probe, ref Trajectory, opts ...Option) ([]float64, error) {
	aligned, err := ComputeAligned(probe, ref, opts...)
	if err != nil {
		return nil, err
	}
	return Deviations(aligned), nil
}

// Deviations extracts the deviation series from a set of alignments.
func Deviations(aligned []Alignment) []float64 {
	devs := make([]float64, len(aligned))
	for i, a := range aligned {
		devs[i] = a.Deviation
	}
	return devs
}
