package trajectory

import (
	"fmt"
	"sort"
)

// Interpolate returns the reference position at the target time.
//
// If a reference sample carries exactly the target time, the first such
// sample is returned unchanged. Otherwise the adjacent pair with
// prev.Time < target < next.Time is linearly interpolated (latitude,
// longitude and altitude) and the result is stamped with the target time.
//
// Errors:
//   - ErrNotFound (also matching ErrEmptyInput) when ref has no samples
//   - ErrUnordered when a reference timestamp is lower than its predecessor
//   - *OutOfRangeError when target is before the first or after the last sample
func Interpolate(target int64, ref Trajectory) (Sample, error) {
	if len(ref) == 0 {
		return Sample{}, fmt.Errorf("interpolate t=%d: %w: %w", target, ErrNotFound, ErrEmptyInput)
	}

	match := -1
	for i, s := range ref {
		if i > 0 && s.Time < ref[i-1].Time {
			return Sample{}, fmt.Errorf("interpolate t=%d: sample %d (t=%d) after t=%d: %w",
				target, i, s.Time, ref[i-1].Time, ErrUnordered)
		}
		if match < 0 && s.Time == target {
			match = i
		}
	}
	if match >= 0 {
		return ref[match], nil
	}

	first, last := ref[0].Time, ref[len(ref)-1].Time
	if target < first || target > last {
		return Sample{}, &OutOfRangeError{Time: target, First: first, Last: last}
	}

	// first < target < last on ordered samples, so 1 <= i < len(ref) and
	// ref[i-1].Time < target < ref[i].Time.
	i := sort.Search(len(ref), func(i int) bool { return ref[i].Time > target })
	return lerp(ref[i-1], ref[i], target), nil
}

// lerp interpolates between prev and next at time t, prev.Time < t < next.Time.
//
// Written as v0 + (v1-v0)*f with f = (t-t0)/(t1-t0). This is the same line as
// the gap-ratio form (r*v1 + v0)/(1+r) with r = (t-t0)/(t1-t), since
// 1+r = (t1-t0)/(t1-t) and so r/(1+r) = f.
func lerp(prev, next Sample, t int64) Sample {
	f := float64(t-prev.Time) / float64(next.Time-prev.Time)
	return Sample{
		Time:      t,
		Latitude:  prev.Latitude + (next.Latitude-prev.Latitude)*f,
		Longitude: prev.Longitude + (next.Longitude-prev.Longitude)*f,
		Altitude:  prev.Altitude + (next.Altitude-prev.Altitude)*f,
	}
}

// Closest returns the index of the reference sample nearest in time to
// target. Ties go to the earlier sample.
func Closest(target int64, ref Trajectory) (int, error) {
	if len(ref) == 0 {
		return -1, fmt.Errorf("closest t=%d: %w", target, ErrEmptyInput)
	}

	best := 0
	bestDiff := absInt64(target - ref[0].Time)
	for i := 1; i < len(ref); i++ {
		if d := absInt64(target - ref[i].Time); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best, nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
