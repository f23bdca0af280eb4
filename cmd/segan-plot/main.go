// segan-plot plots the training curves of a run: the losses and the validation metrics
// recorded in the run's metrics.csv, optionally smoothed with a moving average.
//
// Example:
//
//	segan-plot -run=checkpoints/logs_kvasir_20250101_120000 -smooth=0.8
//
// It saves <run>/plot_losses.png and <run>/plot_metrics.png.
package main

import (
	"flag"
	"github.com/janpfeifer/must"
	"github.com/janpfeifer/segan/internal/generics"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/plots"
	"github.com/janpfeifer/segan/internal/trainer"
	"k8s.io/klog/v2"
	"path/filepath"
)

var (
	flagRun    = flag.String("run", "", "Log directory of the training run, with the metrics.csv file.")
	flagSmooth = flag.Float64("smooth", 0, "Max weight of the past in the moving average used to smooth the curves, "+
		"in [0, 1). 0 plots the raw values.")
	flagFormat = flag.String("format", "png", "Image format of the plots: png, svg or pdf.")
)

var lossColumns = []string{"train_g_loss", "train_d_loss", "val_loss", "val_d_loss"}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagRun == "" {
		klog.Fatal("Please set -run with the log directory of the training run.")
	}
	if *flagSmooth < 0 || *flagSmooth >= 1 {
		klog.Fatalf("Invalid -smooth=%g, it must be in [0, 1)", *flagSmooth)
	}
	epochs := must.M1(trainer.ReadMetricsCSV(filepath.Join(*flagRun, "metrics.csv")))
	if len(epochs) == 0 {
		klog.Fatalf("No epochs recorded in %s yet.", *flagRun)
	}
	x := generics.SliceMap(epochs, func(values map[string]float64) float64 { return values["epoch"] })

	lossesPath := filepath.Join(*flagRun, "plot_losses."+*flagFormat)
	must.M(plots.Lines(lossesPath, "Losses", "epoch", "loss", x, curves(epochs, lossColumns)))
	klog.Infof("Losses plotted to %s", lossesPath)

	metricsPath := filepath.Join(*flagRun, "plot_metrics."+*flagFormat)
	must.M(plots.Lines(metricsPath, "Validation Metrics", "epoch", "score", x, curves(epochs, metrics.Names)))
	klog.Infof("Validation metrics plotted to %s", metricsPath)
}

// curves extracts the columns from the epochs values, smoothed by the moving average.
func curves(epochs []map[string]float64, columns []string) []plots.Series {
	series := make([]plots.Series, 0, len(columns))
	for _, column := range columns {
		ma := generics.MovingAverage{MaxWeight: *flagSmooth}
		series = append(series, plots.Series{
			Name:   column,
			Values: generics.SliceMap(epochs, func(values map[string]float64) float64 {
				return ma.Add(values[column])
			}),
		})
	}
	return series
}
