// segan-benchmark evaluates the generator of a trained model checkpoint on datasets,
// and reports the segmentation metrics (mean IoU, recall, precision, accuracy, dice and F2).
//
// Example:
//
//	segan-benchmark -checkpoint=checkpoints/logs_kvasir_20250101_120000/weights/best_gan_model \
//		-data=data/etis.yaml,data/cvc-colondb.yaml -output_csv=results.csv -plot=results.png
//
// See -help for flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/janpfeifer/must"
	"github.com/janpfeifer/segan/internal/benchmark"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/profilers"
	"github.com/janpfeifer/segan/internal/ui/spinning"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"strings"
	"time"
)

var (
	flagCheckpoint = flag.String("checkpoint", "", "Checkpoint directory of the model to benchmark, "+
		"usually the best_gan_model sub-directory of a training run weights.")
	flagData      = flag.String("data", "", "Comma-separated list of dataset configuration files (YAML) to benchmark on.")
	flagBatchSize = flag.Int("batch_size", 16, "Batch size used for inference.")
	flagImageSize = flag.Int("image_size", 256, "Size of the images for datasets that don't configure it. "+
		"It must match the size the model was trained with.")
	flagThreshold = flag.Float64("threshold", 0.5, "Threshold on the generated mask probabilities.")
	flagDevice    = flag.String("device", "", "GoMLX backend configuration, e.g. \"xla:cuda\", \"xla:cpu\" or \"simplego\". "+
		"If empty, the default backend is used.")
	flagOutputCSV = flag.String("output_csv", "", "If set, save the results to this CSV file.")
	flagPlot      = flag.String("plot", "", "If set, save a bar chart of the results to this file (.png, .svg, .pdf).")
	flagQuiet     = flag.Bool("quiet", false, "Don't print the results table.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	spinning.SafeInterrupt(cancel, 5*time.Second)
	defer cancel()

	must.M(profilers.Setup(ctx))
	defer profilers.OnQuit()

	if *flagCheckpoint == "" {
		klog.Fatal("Please set -checkpoint with the model to benchmark.")
	}
	var paths []string
	for _, path := range strings.Split(*flagData, ",") {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		klog.Fatal("Please set -data with the datasets to benchmark on.")
	}

	spinner := spinning.New(ctx, fmt.Sprintf("Loading datasets (%s) ...", strings.Join(paths, ", ")))
	datasets, err := dataset.LoadAll(paths, *flagImageSize)
	spinner.Done()
	must.M(err)

	_, err = benchmark.Run(ctx, benchmark.Options{
		CheckpointDir: *flagCheckpoint,
		Datasets:      datasets,
		BatchSize:     *flagBatchSize,
		Threshold:     *flagThreshold,
		Device:        *flagDevice,
		Verbose:       !*flagQuiet,
		OutputCSV:     *flagOutputCSV,
		PlotOutput:    *flagPlot,
	})
	if errors.Is(err, context.Canceled) {
		klog.Warning("Benchmark interrupted.")
		return
	}
	must.M(err)
}
