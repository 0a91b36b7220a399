package trajectory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	ref := Trajectory{
		{Time: 0, Latitude: 0, Longitude: 0, Altitude: 0},
		{Time: 10, Latitude: 10, Longitude: 20, Altitude: 1000},
	}

	t.Run("midpoint", func(t *testing.T) {
		got, err := Interpolate(5, ref)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Time)
		assert.Equal(t, 5.0, got.Latitude)
		assert.Equal(t, 10.0, got.Longitude)
		assert.Equal(t, 500.0, got.Altitude)
	})

	t.Run("quarter point", func(t *testing.T) {
		got, err := Interpolate(2, ref)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, got.Latitude, 1e-12)
		assert.InDelta(t, 4.0, got.Longitude, 1e-12)
		assert.InDelta(t, 200.0, got.Altitude, 1e-9)
	})

	t.Run("exact match on first sample", func(t *testing.T) {
		got, err := Interpolate(0, ref)
		require.NoError(t, err)
		assert.Equal(t, ref[0], got)
	})

	t.Run("exact match on last sample", func(t *testing.T) {
		got, err := Interpolate(10, ref)
		require.NoError(t, err)
		assert.Equal(t, ref[1], got)
	})

	t.Run("before first sample", func(t *testing.T) {
		_, err := Interpolate(-1, ref)
		require.ErrorIs(t, err, ErrOutOfRange)

		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Equal(t, int64(-1), oor.Time)
		assert.Equal(t, int64(0), oor.First)
		assert.Equal(t, int64(10), oor.Last)
	})

	t.Run("after last sample", func(t *testing.T) {
		_, err := Interpolate(100, ref)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := Interpolate(5, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("single sample reference", func(t *testing.T) {
		one := Trajectory{{Time: 7, Latitude: 1, Longitude: 2, Altitude: 3}}
		got, err := Interpolate(7, one)
		require.NoError(t, err)
		assert.Equal(t, one[0], got)

		_, err = Interpolate(8, one)
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("unordered reference", func(t *testing.T) {
		// (0, 20) brackets 10, so ordering has to be checked explicitly
		bad := Trajectory{{Time: 0}, {Time: 20}, {Time: 5}, {Time: 30}}
		for _, target := range []int64{10, 20, 25, 100} {
			_, err := Interpolate(target, bad)
			assert.ErrorIs(t, err, ErrUnordered, "t=%d", target)
		}
	})

	t.Run("duplicate timestamps are ordered", func(t *testing.T) {
		dup := Trajectory{{Time: 0}, {Time: 10, Latitude: 1}, {Time: 10, Latitude: 2}, {Time: 20, Latitude: 4}}
		got, err := Interpolate(15, dup)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, got.Latitude, 1e-12)
	})
}

func TestInterpolateReturnsExactSampleVerbatim(t *testing.T) {
	ref := Trajectory{
		{Time: 0, Latitude: 43.0, Longitude: -89.0, Altitude: 300},
		{Time: 30, Latitude: 43.1, Longitude: -88.9, Altitude: 1200},
		{Time: 60, Latitude: 43.25, Longitude: -88.7, Altitude: 2500},
		{Time: 90, Latitude: 43.4, Longitude: -88.4, Altitude: 3600},
	}
	for i, s := range ref {
		got, err := Interpolate(s.Time, ref)
		require.NoError(t, err)
		assert.Equal(t, ref[i], got, "sample %d", i)
	}
}

func TestInterpolateDuplicateTimestampsPrefersFirst(t *testing.T) {
	ref := Trajectory{
		{Time: 0, Latitude: 0},
		{Time: 5, Latitude: 1},
		{Time: 5, Latitude: 2},
		{Time: 10, Latitude: 3},
	}
	got, err := Interpolate(5, ref)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Latitude)
}

// The gap-ratio formulation and the conventional two-point form describe the
// same line.
func TestInterpolateMatchesGapRatioForm(t *testing.T) {
	prev := Sample{Time: 100, Latitude: 42.5, Longitude: -90.25, Altitude: 1500}
	next := Sample{Time: 137, Latitude: 42.9, Longitude: -89.75, Altitude: 4200}
	ref := Trajectory{prev, next}

	for target := prev.Time + 1; target < next.Time; target++ {
		got, err := Interpolate(target, ref)
		require.NoError(t, err)

		ratio := float64(target-prev.Time) / float64(next.Time-target)
		wantLat := (ratio*next.Latitude + prev.Latitude) / (1 + ratio)
		wantLon := (ratio*next.Longitude + prev.Longitude) / (1 + ratio)
		wantAlt := (ratio*next.Altitude + prev.Altitude) / (1 + ratio)

		assert.InDelta(t, wantLat, got.Latitude, 1e-9, "t=%d", target)
		assert.InDelta(t, wantLon, got.Longitude, 1e-9, "t=%d", target)
		assert.InDelta(t, wantAlt, got.Altitude, 1e-6, "t=%d", target)
	}
}

func TestClosest(t *testing.T) {
	ref := Trajectory{{Time: 0}, {Time: 10}, {Time: 20}, {Time: 40}}

	tests := []struct {
		target int64
		want   int
	}{
		{target: -5, want: 0},
		{target: 0, want: 0},
		{target: 4, want: 0},
		{target: 5, want: 0}, // tie keeps the earlier sample
		{target: 6, want: 1},
		{target: 29, want: 2},
		{target: 31, want: 3},
		{target: 400, want: 3},
	}
	for _, tt := range tests {
		got, err := Closest(tt.target, ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "target %d", tt.target)
	}

	_, err := Closest(1, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
