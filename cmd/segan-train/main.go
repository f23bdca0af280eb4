// segan-train trains an adversarial segmentation model (a generator producing masks and a
// discriminator judging (image, mask) pairs), and benchmarks the best checkpoint on test datasets.
//
// Training datasets (-train_data) are merged and split into train/validation. With -kfold=k, each
// training dataset is instead evaluated with k-fold cross-validation: for each fold a new model is
// trained on the other folds and benchmarked on the held-out one.
//
// Example:
//
//	segan-train -config=configs/train.yaml -train_data=data/kvasir.yaml,data/cvc.yaml \
//		-test_data=data/etis.yaml -names=kvasir_cvc -set="device=xla:cuda,num_epochs=50"
//
// See -help for flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/janpfeifer/must"
	"github.com/janpfeifer/segan/internal/benchmark"
	"github.com/janpfeifer/segan/internal/config"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/parameters"
	"github.com/janpfeifer/segan/internal/profilers"
	"github.com/janpfeifer/segan/internal/trainer"
	"github.com/janpfeifer/segan/internal/ui/cli"
	"github.com/janpfeifer/segan/internal/ui/spinning"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Flags
var (
	flagConfig = flag.String("config", "", "YAML file with the training configuration. "+
		"If empty, the default configuration is used.")
	flagSet = flag.String("set", "", "Comma-separated list of key=value overrides of the training configuration "+
		"(same keys as the YAML file) and of the model hyperparameters (e.g. filters, depth, bce_weight, dice_weight).")
	flagTrainData = flag.String("train_data", "", "Comma-separated list of dataset configuration files (YAML) "+
		"used for training. They are merged and split into train/validation according to train_ratio.")
	flagTestData = flag.String("test_data", "", "Comma-separated list of dataset configuration files (YAML) "+
		"to benchmark the best model on, after training.")
	flagNames     = flag.String("names", "", "Name of the run, included in the log directory and benchmark file names.")
	flagBatchSize = flag.Int("batch_size", 0, "If > 0, overrides the configured batch size.")
	flagKFold     = flag.Int("kfold", 0, "If > 1, runs k-fold cross-validation on each of the training datasets, "+
		"instead of training once on the merged datasets.")
)

// globalCtx is cancelled when the program is interrupted (Ctrl+C).
var globalCtx = context.Background()

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(globalCancel, 5*time.Second)
	defer globalCancel()

	must.M(profilers.Setup(globalCtx))
	defer profilers.OnQuit()

	cfg, modelParams := must.M2(loadConfig())
	var err error
	if *flagKFold > 1 {
		err = runKFold(cfg, modelParams)
	} else {
		err = runMerged(cfg, modelParams)
	}
	if errors.Is(err, context.Canceled) {
		klog.Warning("Training interrupted.")
		return
	}
	if errors.Is(err, trainer.ErrNaNLoss) {
		klog.Fatalf("Training aborted: %v", err)
	}
	must.M(err)
}

// loadConfig reads the configuration and applies the -set and -batch_size overrides.
// It returns the overrides left for the model hyperparameters.
func loadConfig() (*config.Config, parameters.Params, error) {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return nil, nil, err
	}
	params := parameters.NewFromConfigString(*flagSet)
	if err = cfg.Override(params); err != nil {
		return nil, nil, err
	}
	if *flagBatchSize > 0 {
		cfg.BatchSize = *flagBatchSize
	}
	// Check that the remaining keys are model hyperparameters.
	if _, err = newModel(cfg, params); err != nil {
		return nil, nil, err
	}
	return cfg, params, nil
}

// newModel creates a freshly initialized model with the given hyperparameters overrides.
func newModel(cfg *config.Config, params parameters.Params) (*model.Model, error) {
	m := model.New(cfg.Discriminator, cfg.Seed)
	params = maps.Clone(params)
	if err := m.SetHyperparameters(params); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		return nil, errors.Errorf("unknown -set keys: %s", strings.Join(parameters.Keys(params), ", "))
	}
	return m, nil
}

func splitList(list string) []string {
	var parts []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// loadDatasets with a spinner.
func loadDatasets(what string, list string, size int) ([]*dataset.Dataset, error) {
	paths := splitList(list)
	if len(paths) == 0 {
		return nil, nil
	}
	spinner := spinning.New(globalCtx, fmt.Sprintf("Loading %s datasets (%s) ...", what, strings.Join(paths, ", ")))
	datasets, err := dataset.LoadAll(paths, size)
	spinner.Done()
	return datasets, err
}

// runMerged trains on the merged training datasets, and benchmarks on the test datasets.
func runMerged(cfg *config.Config, modelParams parameters.Params) error {
	trainDatasets, err := loadDatasets("training", *flagTrainData, cfg.ImageSize)
	if err != nil {
		return err
	}
	if len(trainDatasets) == 0 {
		return errors.New("no training datasets given, please set -train_data")
	}
	combined := trainDatasets[0]
	for _, ds := range trainDatasets[1:] {
		if combined, err = dataset.Merge(combined, ds); err != nil {
			return err
		}
	}
	klog.Infof("Combined training dataset size: %d", combined.Len())
	trainData, valData := combined.Split(cfg.TrainRatio, cfg.Seed)
	klog.Infof("Train split: %d, Val split: %d", trainData.Len(), valData.Len())

	testDatasets, err := loadDatasets("test", *flagTestData, cfg.ImageSize)
	if err != nil {
		return err
	}
	return trainAndBenchmark(cfg, modelParams, trainData, valData, testDatasets, *flagNames)
}

// runKFold runs k-fold cross-validation for each training dataset.
func runKFold(cfg *config.Config, modelParams parameters.Params) error {
	trainDatasets, err := loadDatasets("training", *flagTrainData, cfg.ImageSize)
	if err != nil {
		return err
	}
	if len(trainDatasets) == 0 {
		return errors.New("no training datasets given, please set -train_data")
	}
	k := *flagKFold
	for _, ds := range trainDatasets {
		fmt.Printf("\n=== Processing dataset: %s (%d samples) ===\n", ds.Name, ds.Len())
		folds, err := ds.KFold(k, cfg.Seed)
		if err != nil {
			return errors.WithMessagef(err, "dataset %q", ds.Name)
		}
		for foldIdx, fold := range folds {
			fmt.Printf("\n=== Training fold %d/%d for dataset: %s ===\n", foldIdx+1, k, ds.Name)
			trainData, valData := ds.Subset(fold.Train).Split(cfg.TrainRatio, cfg.Seed)
			testData := ds.Subset(fold.Test)
			testData.Name = fmt.Sprintf("%s_fold%d", ds.Name, foldIdx+1)
			klog.Infof("Fold %d - Train split: %d, Val split: %d, Test split: %d",
				foldIdx+1, trainData.Len(), valData.Len(), testData.Len())
			err = trainAndBenchmark(cfg, modelParams, trainData, valData, []*dataset.Dataset{testData}, testData.Name)
			if err != nil {
				return errors.WithMessagef(err, "fold %d of dataset %q", foldIdx+1, ds.Name)
			}
		}
		fmt.Printf("\n=== Completed %d-fold cross-validation for dataset: %s ===\n", k, ds.Name)
	}
	return nil
}

// trainAndBenchmark trains a new model and benchmarks its best checkpoint on the test datasets, if any.
func trainAndBenchmark(cfg *config.Config, modelParams parameters.Params,
	trainData, valData *dataset.Dataset, testDatasets []*dataset.Dataset, names string) error {
	m, err := newModel(cfg, modelParams)
	if err != nil {
		return err
	}
	t, err := trainer.New(m, trainData, valData, cfg, names)
	if err != nil {
		return err
	}
	defer t.Close()
	if err = t.Train(globalCtx); err != nil {
		return err
	}
	cli.PrintCentered(os.Stdout, cli.Banner(fmt.Sprintf("Best validation loss: %.4f", t.BestValidationLoss())))
	if len(testDatasets) == 0 {
		return nil
	}

	suffix := names
	if suffix == "" {
		suffix = "run"
	}
	_, err = benchmark.Run(globalCtx, benchmark.Options{
		CheckpointDir: t.BestCheckpointDir(),
		Datasets:      testDatasets,
		BatchSize:     cfg.BatchSize,
		Threshold:     cfg.Threshold,
		Device:        cfg.Device,
		Verbose:       true,
		OutputCSV:     filepath.Join(t.WeightsDir(), fmt.Sprintf("benchmark_results_%s.csv", suffix)),
		PlotOutput:    filepath.Join(t.WeightsDir(), fmt.Sprintf("benchmark_plot_%s.png", suffix)),
	})
	return err
}
