// Package benchmark evaluates a trained generator on held-out datasets, and reports the
// segmentation metrics as a CSV file, a table and a bar chart.
package benchmark

import (
	"context"
	"fmt"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	ctxpkg "github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/ui/cli"
	"github.com/janpfeifer/segan/internal/ui/progress"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"os"
	"strconv"
	"time"
)

// Options of a benchmark run.
type Options struct {
	// CheckpointDir with the model to evaluate, usually the trainer's best model directory.
	// Only the generator is loaded.
	CheckpointDir string

	// Model to evaluate. If set, CheckpointDir is ignored.
	Model *model.Model

	Datasets  []*dataset.Dataset
	BatchSize int
	Threshold float64

	// Device is the GoMLX backend configuration, see config.Config.
	Device string

	// Verbose prints the results table to stdout.
	Verbose bool

	// OutputCSV and PlotOutput are the paths where to save the results. Empty to skip.
	OutputCSV  string
	PlotOutput string
}

// Result of one dataset.
type Result struct {
	Dataset string
	Samples int

	// Metrics keyed by metrics.Names.
	Metrics map[string]float64
}

// Run evaluates the model on each of the datasets. Metrics are computed over all the pixels of a dataset.
//
// It returns ctx.Err() if ctx is cancelled (checked between batches).
func Run(ctx context.Context, opts Options) ([]*Result, error) {
	if len(opts.Datasets) == 0 {
		return nil, errors.New("no datasets to benchmark")
	}
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", opts.BatchSize)
	}
	m := opts.Model
	if m == nil {
		m = model.New(model.DiscriminatorPatch, 0)
		if err := m.LoadGenerator(opts.CheckpointDir); err != nil {
			return nil, errors.WithMessage(err, "benchmark")
		}
	}
	backend, err := model.Backend(opts.Device)
	if err != nil {
		return nil, err
	}
	generateExec := ctxpkg.NewExec(backend, m.Generator, func(ctx *ctxpkg.Context, images *graph.Node) *graph.Node {
		return m.GenerateGraph(ctx, images)
	})

	results := make([]*Result, 0, len(opts.Datasets))
	for _, ds := range opts.Datasets {
		start := time.Now()
		segmentation := metrics.NewSegmentation(opts.Threshold)
		bar := progress.New("Benchmark "+ds.Name, ds.NumBatches(opts.BatchSize), true)
		for batch := range ds.Batches(opts.BatchSize, nil) {
			if err := ctx.Err(); err != nil {
				bar.Finish()
				return nil, err
			}
			var masks *tensors.Tensor
			err := exceptions.TryCatch[error](func() { masks = generateExec.Call(batch.Images)[0] })
			if err == nil {
				err = segmentation.Update(masks, batch.Masks)
			}
			if err != nil {
				bar.Finish()
				return nil, errors.WithMessagef(err, "benchmark of dataset %q", ds.Name)
			}
			bar.Add("")
		}
		bar.Finish()
		result := &Result{Dataset: ds.Name, Samples: ds.Len(), Metrics: segmentation.Compute()}
		klog.Infof("Benchmark %q (%d samples, %s): %s", ds.Name, ds.Len(), time.Since(start).Round(time.Millisecond),
			progress.Postfix(metrics.Names, result.Metrics))
		results = append(results, result)
	}

	if opts.Verbose {
		cli.PrintCentered(os.Stdout, Table(results))
	}
	if opts.OutputCSV != "" {
		if err := WriteCSV(opts.OutputCSV, results); err != nil {
			return nil, err
		}
		klog.Infof("Benchmark results saved to %s", opts.OutputCSV)
	}
	if opts.PlotOutput != "" {
		if err := Plot(opts.PlotOutput, results); err != nil {
			return nil, err
		}
		klog.Infof("Benchmark plot saved to %s", opts.PlotOutput)
	}
	return results, nil
}

// Columns of the results, in the CSV file and the table.
func Columns() []string {
	return append([]string{"dataset", "samples"}, metrics.Names...)
}

func rows(results []*Result, format func(float64) string) [][]string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		row := []string{result.Dataset, strconv.Itoa(result.Samples)}
		for _, name := range metrics.Names {
			row = append(row, format(result.Metrics[name]))
		}
		rows = append(rows, row)
	}
	return rows
}

// Table renders the results for the terminal.
func Table(results []*Result) string {
	return cli.Table("Benchmark Results", Columns(),
		rows(results, func(v float64) string { return fmt.Sprintf("%.4f", v) }))
}
