package trajectory

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when an operation needs at least one sample.
	ErrEmptyInput = errors.New("empty trajectory")

	// ErrNotFound is returned when no reference sample can be produced
	// because the reference trajectory has no samples at all.
	ErrNotFound = errors.New("no reference sample found")

	// ErrOutOfRange is matched by every *OutOfRangeError.
	ErrOutOfRange = errors.New("time outside reference range")

	// ErrUnordered is returned when timestamps decrease somewhere in a
	// trajectory.
	ErrUnordered = errors.New("samples not in time order")
)

// OutOfRangeError reports an interpolation request before the first or after
// the last reference sample.
type OutOfRangeError struct {
	Time  int64
	First int64
	Last  int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("time %d outside reference range [%d, %d]", e.Time, e.First, e.Last)
}

// Is lets errors.Is(err, ErrOutOfRange) match.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
