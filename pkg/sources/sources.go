// Package sources reads trajectory files produced by balloon flight
// predictors and trackers and turns them into trajectory.Trajectory values.
//
// Supported formats:
//   - csv:    unix_time,lat,lon,alt (CUSF/Cambridge and ASTRA predictors)
//   - uwyo:   hh:mm:ss,lat,lon,alt,DME,VOR,U,V,W,P,T,RH (University of Wyoming)
//   - actual: lat,lon,alt,<JavaScript Date string> (recorded flight log)
//   - s3:     JSON tracker export with timestamp/lat/lng/alt fields
//
// Records that cannot be converted are counted and described in the
// ParseReport; they never become zero-valued samples.
package sources

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// Format identifies an input file layout.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatUWYO   Format = "uwyo"
	FormatActual Format = "actual"
	FormatS3     Format = "s3"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatUWYO, FormatActual, FormatS3}

// ParseFormat validates a format name from configuration.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown source format %q", name)
}

// maxIssues caps the malformed record details kept per file.
const maxIssues = 50

// ParseReport summarizes a single parse.
type ParseReport struct {
	Path   string
	Format Format

	// Lines is the number of non-blank lines read
	Lines int

	// Samples is the number of samples produced
	Samples int

	// Header is the first line when it was skipped as a column header
	Header string

	// Malformed counts every rejected record; Issues holds the first
	// maxIssues of them
	Malformed int
	Issues    []*MalformedRecordError
}

func (r *ParseReport) addIssue(e *MalformedRecordError) {
	r.Malformed++
	if len(r.Issues) < maxIssues {
		r.Issues = append(r.Issues, e)
	}
}

// lineParser consumes one non-blank line at a time. ok is false when the
// line was valid but did not complete a sample.
type lineParser interface {
	parseLine(line string) (s trajectory.Sample, ok bool, err error)
}

// flusher is implemented by parsers whose records span several lines. flush
// is called at end of input and reports an unfinished record.
type flusher interface {
	flush() error
}

func newLineParser(format Format) (lineParser, error) {
	switch format {
	case FormatCSV:
		return &csvParser{}, nil
	case FormatUWYO:
		return &uwyoParser{}, nil
	case FormatActual:
		return &actualParser{}, nil
	case FormatS3:
		return newS3Parser(), nil
	default:
		return nil, fmt.Errorf("unknown source format %q", format)
	}
}

// Parse reads a whole trajectory from r. path is only used for reporting.
//
// A first line that fails to parse is treated as a column header and kept
// in ParseReport.Header. Any later failure is a malformed record.
func Parse(r io.Reader, format Format, path string) (trajectory.Trajectory, *ParseReport, error) {
	p, err := newLineParser(format)
	if err != nil {
		return nil, nil, err
	}

	report := &ParseReport{Path: path, Format: format}
	var traj trajectory.Trajectory

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		report.Lines++

		sample, ok, err := p.parseLine(line)
		if err != nil {
			if report.Lines == 1 && !ok {
				report.Header = line
				continue
			}
			for _, e := range splitErrors(err) {
				report.addIssue(asMalformed(e, path, lineNo))
			}
		}
		if ok {
			traj = append(traj, sample)
		}
	}
	if f, ok := p.(flusher); ok {
		if err := f.flush(); err != nil {
			report.addIssue(asMalformed(err, path, lineNo))
		}
	}
	report.Samples = len(traj)

	if err := scanner.Err(); err != nil {
		return traj, report, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return traj, report, nil
}

// LoadFile opens and parses a trajectory file. The file is always closed
// before returning. Open failures are reported as *FileUnreadableError.
func LoadFile(path string, format Format) (trajectory.Trajectory, *ParseReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseReport{Path: path, Format: format}, &FileUnreadableError{Path: path, Err: err}
	}
	defer f.Close()

	return Parse(f, format, path)
}

// splitErrors flattens an errors.Join result into its parts.
func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func asMalformed(err error, path string, line int) *MalformedRecordError {
	var mre *MalformedRecordError
	if !errors.As(err, &mre) {
		mre = &MalformedRecordError{Err: err}
	}
	mre.Path = path
	mre.Line = line
	return mre
}
