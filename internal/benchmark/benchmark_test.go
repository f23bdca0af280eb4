package benchmark

import (
	"context"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/gomlx/gomlx/backends/xla"
)

func testDataset(name string, numSamples int) *dataset.Dataset {
	const size = 8
	ds := &dataset.Dataset{Name: name, Size: size}
	for ii := range numSamples {
		sample := &dataset.Sample{Image: make([]float32, size*size*3), Mask: make([]float32, size*size)}
		for pixel := range size * size {
			if (pixel+ii)%3 == 0 {
				sample.Mask[pixel] = 1
				sample.Image[pixel*3] = 1
			}
		}
		ds.Samples = append(ds.Samples, sample)
	}
	return ds
}

func TestRun(t *testing.T) {
	m := model.New(model.DiscriminatorPatch, 42)
	require.NoError(t, m.SetHyperparameters(parameters.Params{model.ParamFilters: "2", model.ParamDepth: "1"}))
	dir := t.TempDir()
	checkpointDir := filepath.Join(dir, "best_gan_model")

	opts := Options{
		Model:      m,
		Datasets:   []*dataset.Dataset{testDataset("a", 3), testDataset("b", 2)},
		BatchSize:  2,
		Threshold:  0.5,
		Verbose:    true,
		OutputCSV:  filepath.Join(dir, "benchmark_results.csv"),
		PlotOutput: filepath.Join(dir, "benchmark_plot.png"),
	}
	results, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Dataset)
	assert.Equal(t, 2, results[1].Samples)
	assert.Len(t, results[0].Metrics, len(metrics.Names))

	contents, err := os.ReadFile(opts.OutputCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "dataset,samples,mean_iou,recall,precision,accuracy,dice,f2", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "b,2,"))
	assert.FileExists(t, opts.PlotOutput)

	// Same results loading the generator from a checkpoint.
	require.NoError(t, m.SaveBestCheckpoint(checkpointDir))
	opts.Model = nil
	opts.CheckpointDir = checkpointDir
	opts.Verbose, opts.OutputCSV, opts.PlotOutput = false, "", ""
	loadedResults, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, results, loadedResults)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, opts)
	require.ErrorIs(t, err, context.Canceled)

	opts.CheckpointDir = filepath.Join(dir, "missing")
	_, err = Run(context.Background(), opts)
	require.Error(t, err)
}

func TestTable(t *testing.T) {
	table := Table([]*Result{{Dataset: "kvasir", Samples: 10, Metrics: map[string]float64{"dice": 0.81234}}})
	assert.Contains(t, table, "kvasir")
	assert.Contains(t, table, "0.8123")
	assert.Contains(t, table, "mean_iou")
}

func TestWriteCSV(t *testing.T) {
	results := []*Result{
		{Dataset: "kvasir", Samples: 10, Metrics: map[string]float64{"dice": 0.5, "f2": 0.25}},
		{Dataset: "cvc", Samples: 3, Metrics: map[string]float64{"dice": 1}},
	}
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, WriteCSV(path, results))
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Columns(), ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "kvasir,10,"))
	assert.Contains(t, lines[1], "0.500000")

	// Write errors are reported, not only creation ones.
	if _, err := os.Stat("/dev/full"); err == nil {
		require.Error(t, WriteCSV("/dev/full", results))
	}
	require.Error(t, WriteCSV(filepath.Join(t.TempDir(), "missing", "results.csv"), results))
}
