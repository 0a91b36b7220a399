package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// csvParser reads "unix_time,lat,lon,alt".
type csvParser struct{}

func (p *csvParser) parseLine(line string) (trajectory.Sample, bool, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return trajectory.Sample{}, false, &MalformedRecordError{Value: line, Err: fmt.Errorf("%w: want 4, got %d", ErrTooFewFields, len(fields))}
	}

	t, err := parseFloatField("time", fields[0])
	if err != nil {
		return trajectory.Sample{}, false, err
	}
	lat, lon, alt, err := parseCoordinates(fields[1:4])
	if err != nil {
		return trajectory.Sample{}, false, err
	}

	return trajectory.Sample{Time: int64(t), Latitude: lat, Longitude: lon, Altitude: alt}, true, nil
}

// uwyoParser reads the University of Wyoming balloon prediction table:
// "hh:mm:ss,lat,lon,alt,DME,VOR,U,V,W,P,T,RH". Only the first four
// columns are used.
type uwyoParser struct {
	clock dayClock
}

func (p *uwyoParser) parseLine(line string) (trajectory.Sample, bool, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return trajectory.Sample{}, false, &MalformedRecordError{Value: line, Err: fmt.Errorf("%w: want at least 4, got %d", ErrTooFewFields, len(fields))}
	}

	sod, err := parseClock(fields[0])
	if err != nil {
		return trajectory.Sample{}, false, err
	}
	lat, lon, alt, err := parseCoordinates(fields[1:4])
	if err != nil {
		return trajectory.Sample{}, false, err
	}

	return trajectory.Sample{Time: p.clock.advance(sod), Latitude: lat, Longitude: lon, Altitude: alt}, true, nil
}

// Layouts of the JavaScript Date.toString() timestamps found in recorded
// flight logs, e.g. "Sat Jun 30 2018 14:05:33 GMT-0500 (CDT)".
const (
	jsDateLayout     = "Mon Jan 02 2006 15:04:05 GMT-0700"
	jsDateLayoutNoTZ = "Mon Jan 02 2006 15:04:05"
)

// actualParser reads the recorded flight log: "lat,lon,alt,<timestamp>".
//
// A timestamp carrying a full date becomes Unix seconds. Anything else
// falls back to the hh:mm:ss found at columns 16-24, as seconds of day.
type actualParser struct {
	clock dayClock
}

func (p *actualParser) parseLine(line string) (trajectory.Sample, bool, error) {
	fields := strings.SplitN(line, ",", 4)
	if len(fields) < 4 {
		return trajectory.Sample{}, false, &MalformedRecordError{Value: line, Err: fmt.Errorf("%w: want 4, got %d", ErrTooFewFields, len(fields))}
	}

	lat, lon, alt, err := parseCoordinates(fields[:3])
	if err != nil {
		return trajectory.Sample{}, false, err
	}
	t, err := p.parseTimestamp(strings.TrimSpace(fields[3]))
	if err != nil {
		return trajectory.Sample{}, false, err
	}

	return trajectory.Sample{Time: t, Latitude: lat, Longitude: lon, Altitude: alt}, true, nil
}

func (p *actualParser) parseTimestamp(ts string) (int64, error) {
	if len(ts) >= len(jsDateLayout) {
		if t, err := time.Parse(jsDateLayout, ts[:len(jsDateLayout)]); err == nil {
			return t.Unix(), nil
		}
	}
	if len(ts) >= len(jsDateLayoutNoTZ) {
		if t, err := time.Parse(jsDateLayoutNoTZ, ts[:len(jsDateLayoutNoTZ)]); err == nil {
			return t.Unix(), nil
		}
	}
	if len(ts) >= 24 {
		sod, err := parseClock(ts[16:24])
		if err == nil {
			return p.clock.advance(sod), nil
		}
	}
	return 0, &MalformedRecordError{Field: "timestamp", Value: ts, Err: ErrBadTimestamp}
}

// s3Fields are the keys a tracker export must provide for each sample.
var s3Fields = []string{"timestamp", "lat", "lng", "alt"}

// s3Parser reads balloon tracker exports. Each sample is either a single
// JSON object on one line, or a pretty-printed object with one
// `"key": value` pair per line. Keys other than timestamp/lat/lng/alt are
// ignored. A pretty-printed record ends at its closing brace, at the next
// opening brace, or when one of its keys repeats; an incomplete record at
// any of those points is malformed.
type s3Parser struct {
	pending map[string]float64

	// broken is set once the current record has reported a bad field
	broken bool
}

func newS3Parser() *s3Parser {
	return &s3Parser{pending: make(map[string]float64, len(s3Fields))}
}

// s3Record is the one-line JSON form.
type s3Record struct {
	Timestamp *float64 `json:"timestamp"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Alt       *float64 `json:"alt"`
}

func (p *s3Parser) parseLine(line string) (trajectory.Sample, bool, error) {
	trimmed := strings.TrimSuffix(line, ",")

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		incomplete := p.flush()
		s, ok, err := p.parseObject(trimmed)
		if incomplete != nil {
			return s, ok, errors.Join(incomplete, err)
		}
		return s, ok, err
	}
	if strings.HasSuffix(trimmed, "{") || strings.HasPrefix(trimmed, "}") {
		return trajectory.Sample{}, false, p.flush()
	}

	key, value, found := strings.Cut(trimmed, ":")
	if !found {
		return trajectory.Sample{}, false, nil
	}
	key = strings.Trim(strings.TrimSpace(key), `"`)
	if !isS3Field(key) {
		return trajectory.Sample{}, false, nil
	}

	// A repeated key starts the next record
	var incomplete error
	if _, seen := p.pending[key]; seen {
		incomplete = p.flush()
	}

	v, err := parseFloatField(key, strings.Trim(strings.TrimSpace(value), `"`))
	if err != nil {
		p.broken = true
		return trajectory.Sample{}, false, errors.Join(incomplete, err)
	}
	p.pending[key] = v

	if p.broken || len(p.pending) < len(s3Fields) {
		return trajectory.Sample{}, false, incomplete
	}
	s := s3Sample(p.pending["timestamp"], p.pending["lat"], p.pending["lng"], p.pending["alt"])
	clear(p.pending)
	return s, true, nil
}

// flush ends the current pretty-printed record. A record that started but
// did not receive every field is malformed, unless a bad field of it was
// already reported.
func (p *s3Parser) flush() error {
	defer func() {
		clear(p.pending)
		p.broken = false
	}()
	if len(p.pending) == 0 || p.broken {
		return nil
	}

	var missing []string
	for _, f := range s3Fields {
		if _, ok := p.pending[f]; !ok {
			missing = append(missing, f)
		}
	}
	return &MalformedRecordError{
		Field: strings.Join(missing, ","),
		Err:   fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", ")),
	}
}

func (p *s3Parser) parseObject(obj string) (trajectory.Sample, bool, error) {
	var rec s3Record
	if err := json.Unmarshal([]byte(obj), &rec); err != nil {
		return trajectory.Sample{}, false, &MalformedRecordError{Value: obj, Err: err}
	}

	values := []*float64{rec.Timestamp, rec.Lat, rec.Lng, rec.Alt}
	for i, v := range values {
		if v == nil {
			return trajectory.Sample{}, false, &MalformedRecordError{Field: s3Fields[i], Value: obj, Err: fmt.Errorf("missing field")}
		}
	}
	return s3Sample(*rec.Timestamp, *rec.Lat, *rec.Lng, *rec.Alt), true, nil
}

func isS3Field(key string) bool {
	for _, f := range s3Fields {
		if key == f {
			return true
		}
	}
	return false
}

// s3Sample builds a sample, accepting timestamps in seconds or
// milliseconds since the epoch.
func s3Sample(ts, lat, lng, alt float64) trajectory.Sample {
	if ts > 1e11 {
		ts /= 1000
	}
	return trajectory.Sample{Time: int64(ts), Latitude: lat, Longitude: lng, Altitude: alt}
}
