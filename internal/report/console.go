// Package report renders analysis results: a console report plus CSV,
// spreadsheet, PNG and HTML chart files.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/sources"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// Console writes the human-readable report. With Color off the output is
// plain text suitable for logs and redirection.
type Console struct {
	Out   io.Writer
	Color bool

	title   lipgloss.Style
	warn    lipgloss.Style
	summary lipgloss.Style
	dim     lipgloss.Style
}

// NewConsole creates a console report writer for out.
func NewConsole(out io.Writer, color bool) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		Out:     out,
		Color:   color,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		summary: r.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (c *Console) style(s lipgloss.Style, text string) string {
	if !c.Color {
		return text
	}
	return s.Render(text)
}

// PrintTrajectory dumps a trajectory as "time,latitude,longitude,altitude"
// rows under a titled header.
func (c *Console) PrintTrajectory(label string, t trajectory.Trajectory) {
	fmt.Fprintln(c.Out, c.style(c.title, label+":"))
	fmt.Fprintln(c.Out, c.style(c.dim, "time, latitude, longitude, altitude"))
	for _, s := range t {
		fmt.Fprintf(c.Out, "%d,%s,%s,%s\n", s.Time, formatCoord(s.Latitude), formatCoord(s.Longitude), formatCoord(s.Altitude))
	}
	fmt.Fprintln(c.Out)
}

// PrintAlignments writes one diagnostic row per aligned sample:
// probe time and position, reference time and position, deviation. When
// ref holds the raw prediction, each row also gets the time of the
// prediction sample nearest to the probe, which shows how far the
// interpolation reached.
func (c *Console) PrintAlignments(cmp *pipeline.Comparison, ref trajectory.Trajectory) {
	for _, a := range cmp.Alignments {
		fmt.Fprintf(c.Out, "%d,%s,%s,%s,%d,%s,%s,%s,%s",
			a.Probe.Time, formatCoord(a.Probe.Latitude), formatCoord(a.Probe.Longitude), formatCoord(a.Probe.Altitude),
			a.Reference.Time, formatCoord(a.Reference.Latitude), formatCoord(a.Reference.Longitude), formatCoord(a.Reference.Altitude),
			trajectory.FormatValue(a.Deviation))
		if i, err := trajectory.Closest(a.Probe.Time, ref); err == nil {
			fmt.Fprintf(c.Out, ",%d", ref[i].Time)
		}
		fmt.Fprintln(c.Out)
	}
}

// PrintDeviations lists the deviation series of one comparison.
func (c *Console) PrintDeviations(cmp *pipeline.Comparison, unit string) {
	fmt.Fprintln(c.Out, c.style(c.title, cmp.Label+" Deviation:"))
	if cmp.Err != nil {
		fmt.Fprintln(c.Out, c.style(c.warn, "⚠ "+cmp.Err.Error()))
		fmt.Fprintln(c.Out)
		return
	}
	for _, d := range cmp.Deviations {
		fmt.Fprintf(c.Out, "%s %s\n", trajectory.FormatValue(d), unit)
	}
	if cmp.Skipped > 0 {
		fmt.Fprintln(c.Out, c.style(c.warn, fmt.Sprintf("⚠ %d samples outside the prediction time range were skipped", cmp.Skipped)))
	}
	fmt.Fprintln(c.Out)
}

// PrintSummary writes the one-line summary of a comparison.
func (c *Console) PrintSummary(cmp *pipeline.Comparison) {
	if !cmp.OK() {
		return
	}
	fmt.Fprintln(c.Out, c.style(c.summary, cmp.Summary.Sentence(cmp.Label)))
}

// PrintParseIssues reports every source that failed or had malformed records.
func (c *Console) PrintParseIssues(srcs []*pipeline.LoadedSource) {
	for _, s := range srcs {
		if s.Err != nil {
			fmt.Fprintln(c.Out, c.style(c.warn, fmt.Sprintf("⚠ %s: %v", s.Name, s.Err)))
			continue
		}
		if s.Report == nil || s.Report.Malformed == 0 {
			continue
		}
		fmt.Fprintln(c.Out, c.style(c.warn, fmt.Sprintf("⚠ %s: %d malformed records", s.Name, s.Report.Malformed)))
		printIssues(c, s.Report.Issues)
	}
}

func printIssues(c *Console, issues []*sources.MalformedRecordError) {
	for _, issue := range issues {
		fmt.Fprintln(c.Out, c.style(c.dim, "  "+issue.Error()))
	}
}

// PrintResult writes the full report: source problems, the requested
// trajectories, every deviation series and the summaries.
func (c *Console) PrintResult(result *pipeline.Result, printTrajectories bool, only []string) {
	c.PrintParseIssues(result.Sources)

	if printTrajectories {
		for _, s := range result.Sources {
			if s.Usable() && wanted(s.Name, only) {
				c.PrintTrajectory(s.Label, s.Trajectory)
			}
		}
	}

	unit := result.Metric.Unit()
	for _, cmp := range result.Comparisons {
		c.PrintDeviations(cmp, unit)
	}
	for _, cmp := range result.Comparisons {
		c.PrintSummary(cmp)
	}
}

func wanted(name string, only []string) bool {
	return len(only) == 0 || slices.Contains(only, name)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
