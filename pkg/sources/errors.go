package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewFields is wrapped when a record is missing columns.
	ErrTooFewFields = errors.New("too few fields")

	// ErrNotFinite is wrapped when a numeric field parses to NaN or ±Inf.
	ErrNotFinite = errors.New("value is not finite")

	// ErrBadTimestamp is wrapped when no supported time layout matches.
	ErrBadTimestamp = errors.New("unrecognized timestamp")

	// ErrIncompleteRecord is wrapped when a multi-line record ends before
	// all of its fields were seen.
	ErrIncompleteRecord = errors.New("incomplete record")
)

// FileUnreadableError reports a source file that could not be opened.
type FileUnreadableError struct {
	Path string
	Err  error
}

func (e *FileUnreadableError) Error() string {
	return fmt.Sprintf("file '%s' could not be opened: %v", e.Path, e.Err)
}

func (e *FileUnreadableError) Unwrap() error {
	return e.Err
}

// MalformedRecordError describes one record whose field could not be
// converted.
type MalformedRecordError struct {
	Path  string
	Line  int
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s:%d: malformed record: %v", e.Path, e.Line, e.Err)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s:%d: malformed %s: %v", e.Path, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s:%d: malformed %s %q: %v", e.Path, e.Line, e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
