package benchmark

import (
	"encoding/csv"
	"github.com/janpfeifer/segan/internal/generics"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/plots"
	"github.com/pkg/errors"
	"os"
	"strconv"
)

// WriteCSV saves the results to path, one row per dataset.
func WriteCSV(path string, results []*Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create benchmark results file %q", path)
	}
	records := append([][]string{Columns()},
		rows(results, func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) })...)
	if err = csv.NewWriter(f).WriteAll(records); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write benchmark results to %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close benchmark results file %q", path)
}

// Plot saves a bar chart of the results to path: metrics on the X axis, one bar per dataset.
// The image format is given by the extension of path (e.g. ".png", ".svg").
func Plot(path string, results []*Result) error {
	series := make([]plots.Series, 0, len(results))
	for _, result := range results {
		series = append(series, plots.Series{
			Name:   result.Dataset,
			Values: generics.SliceMap(metrics.Names, func(name string) float64 {
				return result.Metrics[name]
			}),
		})
	}
	return plots.Bars(path, "Benchmark Results", "Score", metrics.Names, series)
}
