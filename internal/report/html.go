package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// LineChart builds the deviation-over-time chart.
func LineChart(title, subtitle, unit string, series []Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time since launch (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: fmt.Sprintf("Deviation (%s)", unit)}),
	)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Points))
		for i, pt := range s.Points {
			data[i] = opts.LineData{Value: []interface{}{pt.Time, pt.Deviation}}
		}
		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

// MeanChart builds a bar chart of mean and standard deviation per series.
func MeanChart(unit string, series []Series) *charts.Bar {
	names := make([]string, len(series))
	means := make([]opts.BarData, len(series))
	stddevs := make([]opts.BarData, len(series))
	for i, s := range series {
		names[i] = s.Name
		means[i] = opts.BarData{Value: s.Mean}
		stddevs[i] = opts.BarData{Value: s.StdDev}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean deviation", Subtitle: unit}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	label := charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})
	bar.SetXAxis(names).
		AddSeries("mean", means, label).
		AddSeries("stddev", stddevs, label)
	return bar
}

// RenderHTML writes a standalone page with the deviation line chart and the
// per-source mean bar chart.
func RenderHTML(w io.Writer, title, subtitle, unit string, series []Series) error {
	page := components.NewPage()
	page.AddCharts(
		LineChart(title, subtitle, unit, series),
		MeanChart(unit, series),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
