package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/coordinates"
)

var csvHeader = []string{
	"index", "time",
	"probe_lat", "probe_lon", "probe_alt",
	"reference_lat", "reference_lon", "reference_alt",
	"deviation", "bearing_deg",
}

// WriteCSV writes every alignment of a comparison. bearing_deg is the
// direction from the ground-truth position to the predicted one.
func WriteCSV(w io.Writer, cmp *pipeline.Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, a := range cmp.Alignments {
		from := coordinates.Geographic{Latitude: a.Probe.Latitude, Longitude: a.Probe.Longitude}
		to := coordinates.Geographic{Latitude: a.Reference.Latitude, Longitude: a.Reference.Longitude}

		record := []string{
			strconv.Itoa(a.Index),
			strconv.FormatInt(a.Probe.Time, 10),
			ftoa(a.Probe.Latitude), ftoa(a.Probe.Longitude), ftoa(a.Probe.Altitude),
			ftoa(a.Reference.Latitude), ftoa(a.Reference.Longitude), ftoa(a.Reference.Altitude),
			ftoa(a.Deviation),
			strconv.FormatFloat(coordinates.Bearing(from, to), 'f', 1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record %d: %w", a.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
