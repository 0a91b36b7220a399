package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/unklstewy/flightpath/internal/pipeline"
)

const summarySheet = "Summary"

// maxSheetName is the Excel limit on worksheet name length.
const maxSheetName = 31

var summaryHeader = []interface{}{
	"Source", "Samples", "Mean", "StdDev", "Min", "Max", "Median", "RMS", "Skipped", "Error",
}

var alignmentHeader = []interface{}{
	"Index", "Time", "Probe Lat", "Probe Lon", "Probe Alt",
	"Reference Lat", "Reference Lon", "Reference Alt", "Deviation",
}

// WriteXLSX writes a workbook with a Summary sheet followed by one sheet of
// alignments per comparison.
func WriteXLSX(w io.Writer, result *pipeline.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := [][]interface{}{summaryHeader}
	for _, c := range result.Comparisons {
		row := []interface{}{c.Label, c.Summary.Count}
		if c.OK() {
			s := c.Summary
			row = append(row, s.Mean, s.StdDev, s.Min, s.Max, s.Median, s.RMS, c.Skipped, "")
		} else {
			row = append(row, nil, nil, nil, nil, nil, nil, c.Skipped, errString(c.Err))
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, summarySheet, rows, bold); err != nil {
		return err
	}

	used := map[string]bool{summarySheet: true}
	for _, c := range result.Comparisons {
		if len(c.Alignments) == 0 {
			continue
		}
		name := uniqueSheetName(c.Label, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		rows := make([][]interface{}, 0, len(c.Alignments)+1)
		rows = append(rows, alignmentHeader)
		for _, a := range c.Alignments {
			rows = append(rows, []interface{}{
				a.Index, a.Probe.Time,
				a.Probe.Latitude, a.Probe.Longitude, a.Probe.Altitude,
				a.Reference.Latitude, a.Reference.Longitude, a.Reference.Altitude,
				a.Deviation,
			})
		}
		if err := writeRows(f, name, rows, bold); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

// uniqueSheetName strips characters Excel rejects, truncates to the length
// limit and appends a counter on collision.
func uniqueSheetName(label string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Trim(label, "'"))
	if base == "" {
		base = "Comparison"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[name] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
