package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/config"
)

// WriteAll writes every report format enabled in rc into dir and returns
// the paths written.
func WriteAll(dir string, rc config.ReportConfig, result *pipeline.Result) ([]string, error) {
	if !rc.Any() {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var written []string
	write := func(name string, render func(*bytes.Buffer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	if rc.CSV {
		for _, c := range result.Comparisons {
			if len(c.Alignments) == 0 {
				continue
			}
			err := write("deviations_"+fileSafe(c.Source)+".csv", func(b *bytes.Buffer) error {
				return WriteCSV(b, c)
			})
			if err != nil {
				return written, err
			}
		}
	}

	if rc.XLSX {
		err := write("deviations.xlsx", func(b *bytes.Buffer) error {
			return WriteXLSX(b, result)
		})
		if err != nil {
			return written, err
		}
	}

	series := SeriesFromResult(result)
	title := fmt.Sprintf("Deviation from %s", result.GroundTruth)
	unit := result.Metric.Unit()

	if rc.PNG && len(series) > 0 {
		err := write("deviations.png", func(b *bytes.Buffer) error {
			return WritePNG(b, title, unit, series)
		})
		if err != nil {
			return written, err
		}
	}

	if rc.HTML {
		subtitle := fmt.Sprintf("%s, %s", result.Metric, result.StartedAt.Format("2006-01-02 15:04:05"))
		err := write("deviations.html", func(b *bytes.Buffer) error {
			return RenderHTML(b, title, subtitle, unit, series)
		})
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// fileSafe keeps letters, digits, dot, dash and underscore.
func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
