// Package trajectory aligns flight trajectories on a common time axis and
// measures how far one track deviates from another.
//
// A Trajectory is an ordered list of timestamped positions. The typical
// flow is:
//
//	Normalize(actual)     // launch becomes t=0
//	Normalize(prediction)
//	devs, err := ComputeDeviations(actual, prediction)
//	summary, err := Summarize(devs)
//
// Every probe sample is matched against the reference trajectory at the
// same instant, either by an exact timestamp match or by linear
// interpolation between the two bracketing reference samples.
package trajectory

import (
	"fmt"
)

// Sample is a single timestamped position on a flight path.
type Sample struct {
	// Time in whole seconds, either Unix epoch or seconds since launch
	Time int64 `json:"time"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"lat"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"lon"`

	// Altitude in whatever length unit the source uses.
	// Units are not cross-checked between trajectories.
	Altitude float64 `json:"alt"`
}

// Trajectory is a sequence of samples ordered by non-decreasing Time.
type Trajectory []Sample

// Len returns the number of samples.
func (t Trajectory) Len() int {
	return len(t)
}

// First returns the earliest sample.
func (t Trajectory) First() (Sample, error) {
	if len(t) == 0 {
		return Sample{}, ErrEmptyInput
	}
	return t[0], nil
}

// Last returns the latest sample.
func (t Trajectory) Last() (Sample, error) {
	if len(t) == 0 {
		return Sample{}, ErrEmptyInput
	}
	return t[len(t)-1], nil
}

// Span returns the times of the first and last samples.
func (t Trajectory) Span() (first, last int64, err error) {
	f, err := t.First()
	if err != nil {
		return 0, 0, err
	}
	l, err := t.Last()
	if err != nil {
		return 0, 0, err
	}
	return f.Time, l.Time, nil
}

// Duration is the elapsed seconds between the first and last samples.
// An empty trajectory has zero duration.
func (t Trajectory) Duration() int64 {
	first, last, err := t.Span()
	if err != nil {
		return 0
	}
	return last - first
}

// Times returns the time axis of the trajectory.
func (t Trajectory) Times() []int64 {
	times := make([]int64, len(t))
	for i, s := range t {
		times[i] = s.Time
	}
	return times
}

// Clone returns an independent copy.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// Validate checks the invariants the rest of the package relies on: at least
// one sample, and timestamps that never decrease.
func (t Trajectory) Validate() error {
	if len(t) == 0 {
		return ErrEmptyInput
	}
	for i := 1; i < len(t); i++ {
		if t[i].Time < t[i-1].Time {
			return fmt.Errorf("sample %d (t=%d) precedes sample %d (t=%d): %w",
				i, t[i].Time, i-1, t[i-1].Time, ErrUnordered)
		}
	}
	return nil
}

// Normalize shifts every timestamp so the first sample is at time zero.
// The trajectory is modified in place; positions are untouched.
// Calling it on an already normalized trajectory is a no-op.
func Normalize(t Trajectory) error {
	if len(t) == 0 {
		return fmt.Errorf("normalize: %w", ErrEmptyInput)
	}
	offset := t[0].Time
	for i := range t {
		t[i].Time -= offset
	}
	return nil
}
