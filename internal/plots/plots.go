// Package plots saves bar charts and line charts (e.g. training curves) as images, using gonum/plot.
// The image format is given by the file extension (".png", ".svg", ".pdf", ...).
package plots

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is a named list of values.
type Series struct {
	Name   string
	Values []float64
}

// Bars saves a grouped bar chart to path: one group per category on the X axis, and one bar per series
// in each group. Each series must have one value per category.
func Bars(path, title, yLabel string, categories []string, series []Series) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	barWidth := vg.Points(60 / float64(max(len(series), 1)))
	for ii, s := range series {
		if len(s.Values) != len(categories) {
			return errors.Errorf("series %q has %d values, but there are %d categories", s.Name, len(s.Values), len(categories))
		}
		bars, err := plotter.NewBarChart(plotter.Values(s.Values), barWidth)
		if err != nil {
			return errors.Wrapf(err, "failed to plot series %q", s.Name)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(ii)
		bars.Offset = vg.Length(float64(ii)-float64(len(series)-1)/2) * barWidth
		p.Add(bars)
		p.Legend.Add(s.Name, bars)
	}
	p.NominalX(categories...)
	return save(p, path)
}

// Lines saves a line chart to path, with one line per series over the given x values.
// Each series must have one value per x.
func Lines(path, title, xLabel, yLabel string, x []float64, series []Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	lines := make([]any, 0, 2*len(series))
	for _, s := range series {
		if len(s.Values) != len(x) {
			return errors.Errorf("series %q has %d values, but there are %d x values", s.Name, len(s.Values), len(x))
		}
		points := make(plotter.XYs, len(x))
		for ii := range x {
			points[ii].X = x[ii]
			points[ii].Y = s.Values[ii]
		}
		lines = append(lines, s.Name, points)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "failed to plot lines")
	}
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	return nil
}
