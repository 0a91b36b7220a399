package report

import (
	"github.com/unklstewy/flightpath/internal/pipeline"
)

// Point is one deviation sample on a chart.
type Point struct {
	Time      int64
	Deviation float64
}

// Series is the deviation history of one prediction. It is the common
// input of the chart writers, whether built from a fresh pipeline run or
// read back from the database.
type Series struct {
	Name   string
	Points []Point
	Mean   float64
	StdDev float64
}

// SeriesFromResult converts every successful comparison into a Series,
// keyed by the probe timestamp.
func SeriesFromResult(result *pipeline.Result) []Series {
	var out []Series
	for _, c := range result.Comparisons {
		if !c.OK() {
			continue
		}
		s := Series{
			Name:   c.Label,
			Points: make([]Point, len(c.Alignments)),
			Mean:   c.Summary.Mean,
			StdDev: c.Summary.StdDev,
		}
		for i, a := range c.Alignments {
			s.Points[i] = Point{Time: a.Probe.Time, Deviation: a.Deviation}
		}
		out = append(out, s)
	}
	return out
}
