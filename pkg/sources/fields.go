package sources

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	hourToSec     = 3600
	minuteToSec   = 60
	secondsPerDay = 24 * hourToSec
)

// parseFloatField converts one column, rejecting empty, non-numeric and
// non-finite values.
func parseFloatField(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &MalformedRecordError{Field: field, Value: value, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &MalformedRecordError{Field: field, Value: value, Err: ErrNotFinite}
	}
	return v, nil
}

// parseCoordinates reads latitude, longitude and altitude from three
// consecutive columns.
func parseCoordinates(fields []string) (lat, lon, alt float64, err error) {
	if lat, err = parseFloatField("latitude", fields[0]); err != nil {
		return
	}
	if lon, err = parseFloatField("longitude", fields[1]); err != nil {
		return
	}
	alt, err = parseFloatField("altitude", fields[2])
	return
}

// parseClock converts "hh:mm:ss" (fractional seconds allowed) to seconds
// of day.
func parseClock(value string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, &MalformedRecordError{Field: "time", Value: value, Err: ErrBadTimestamp}
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &MalformedRecordError{Field: "hour", Value: parts[0], Err: err}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &MalformedRecordError{Field: "minute", Value: parts[1], Err: err}
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, &MalformedRecordError{Field: "second", Value: parts[2], Err: err}
	}
	if h < 0 || m < 0 || m > 59 || s < 0 || s >= 61 {
		return 0, &MalformedRecordError{Field: "time", Value: value, Err: fmt.Errorf("%w: component out of range", ErrBadTimestamp)}
	}

	return int64(h)*hourToSec + int64(m)*minuteToSec + int64(s), nil
}

// dayClock turns seconds-of-day readings into a monotonic time axis by
// adding a day whenever the clock jumps backwards by more than twelve hours,
// which is what a flight passing midnight UTC looks like.
type dayClock struct {
	started bool
	prev    int64
	offset  int64
}

func (c *dayClock) advance(secondsOfDay int64) int64 {
	if c.started && secondsOfDay+c.offset < c.prev-secondsPerDay/2 {
		c.offset += secondsPerDay
	}
	c.started = true
	c.prev = secondsOfDay + c.offset
	return c.prev
}
