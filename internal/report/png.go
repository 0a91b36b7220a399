package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WritePNG draws deviation against time, one line per series.
func WritePNG(w io.Writer, title, unit string, series []Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time since launch (s)"
	p.Y.Label.Text = fmt.Sprintf("Deviation (%s)", unit)

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			pts[j] = plotter.XY{X: float64(pt.Time), Y: pt.Deviation}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to plot %s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
