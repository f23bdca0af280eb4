// Package trainer implements the adversarial training of a segmentation model.Model.
//
// Each batch runs one generator step (segmentation loss) followed by one discriminator step
// (real pairs vs generated pairs). Each epoch runs a training pass and a validation pass, logs
// the results to the training log and to a CSV file, checkpoints the model and steps the learning
// rate schedules.
//
// Any NaN loss aborts the training with ErrNaNLoss, before the corresponding weights are updated.
package trainer

import (
	"fmt"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/google/uuid"
	"github.com/janpfeifer/segan/internal/config"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/logfile"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/scheduler"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

// ErrNaNLoss is returned (wrapped) when any of the losses becomes NaN. The error message names the loss.
var ErrNaNLoss = errors.New("NaN loss")

// Sub-directories of the weights directory.
const (
	LastModelDir = "last_model"
	BestModelDir = "best_gan_model"
)

// Trainer holds the state of one training run.
type Trainer struct {
	cfg       *config.Config
	model     *model.Model
	trainData *dataset.Dataset
	valData   *dataset.Dataset
	names     string
	runID     string

	backend                backends.Backend
	optimizerG, optimizerD optimizers.Interface
	schedulerG, schedulerD *scheduler.StepDecay
	shuffleRng             *rand.Rand
	metrics                *metrics.Segmentation

	// Executors.
	generateExec, generatorTrainExec         *context.Exec
	discriminateExec, discriminatorTrainExec *context.Exec

	logDir, weightsDir string
	logFile            *logfile.LogFile
	csv                *csvLogger

	bestValLoss float64
}

// New creates a Trainer for the model with the given train and validation datasets.
//
// It creates the run's log directory under cfg.CheckpointDir, named "logs_[<names>_]<timestamp>",
// where the training log (if cfg.LogToFile), the metrics CSV file, the run metadata (run.yaml)
// and the model weights are saved.
//
// Call Close when done.
func New(m *model.Model, trainData, valData *dataset.Dataset, cfg *config.Config, names string) (*Trainer, error) {
	if trainData.Len() == 0 || valData.Len() == 0 {
		return nil, errors.Errorf("training requires non-empty train and validation datasets, got %d and %d samples",
			trainData.Len(), valData.Len())
	}
	if trainData.Size != cfg.ImageSize || valData.Size != cfg.ImageSize {
		return nil, errors.Errorf("datasets image sizes (train=%d, validation=%d) differ from configured image_size=%d",
			trainData.Size, valData.Size, cfg.ImageSize)
	}
	t := &Trainer{
		cfg:         cfg,
		model:       m,
		trainData:   trainData,
		valData:     valData,
		names:       names,
		runID:       uuid.NewString(),
		schedulerG:  scheduler.NewStepDecay(cfg.LRGenerator, cfg.LRDecayGamma, cfg.LRDecayStep),
		schedulerD:  scheduler.NewStepDecay(cfg.LRDiscriminator, cfg.LRDecayGamma, cfg.LRDecayStep),
		shuffleRng:  rand.New(rand.NewPCG(uint64(cfg.Seed), 0)),
		metrics:     metrics.NewSegmentation(cfg.Threshold),
		bestValLoss: math.Inf(1),
	}
	var err error
	t.backend, err = model.Backend(cfg.Device)
	if err != nil {
		return nil, err
	}
	t.optimizerG = newOptimizer(m.Generator, cfg.LRGenerator, cfg)
	t.optimizerD = newOptimizer(m.Discriminator, cfg.LRDiscriminator, cfg)
	t.applyLearningRates()
	t.createExecutors()

	if err = t.setupLogging(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// newOptimizer creates the Adam optimizer of one sub-network, configured in its context.
// The learning rate is later updated by the schedulers.
func newOptimizer(ctx *context.Context, learningRate float64, cfg *config.Config) optimizers.Interface {
	ctx.SetParams(map[string]any{
		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: learningRate,
	})
	return optimizers.Adam().
		FromContext(ctx).
		Betas(cfg.Beta1, cfg.Beta2).
		Done()
}

// setupLogging creates the log directory, the log file, the CSV file and writes the run metadata.
func (t *Trainer) setupLogging() error {
	dirName := "logs_" + time.Now().Format("20060102_150405")
	if t.names != "" {
		dirName = "logs_" + t.names + "_" + time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(t.cfg.CheckpointDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create checkpoint directory %q", t.cfg.CheckpointDir)
	}
	// Runs started within the same second get a numeric suffix.
	t.logDir = filepath.Join(t.cfg.CheckpointDir, dirName)
	for suffix := 2; ; suffix++ {
		err := os.Mkdir(t.logDir, 0o755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return errors.Wrapf(err, "failed to create log directory %q", t.logDir)
		}
		t.logDir = filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("%s_%d", dirName, suffix))
	}
	t.weightsDir = filepath.Join(t.logDir, "weights")
	if err := os.Mkdir(t.weightsDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create weights directory %q", t.weightsDir)
	}
	if t.cfg.LogToFile {
		var err error
		t.logFile, err = logfile.Open(filepath.Join(t.logDir, "training.log"))
		if err != nil {
			return err
		}
		klog.V(1).Infof("Logging to %s", t.logFile.Path())
	}
	var err error
	t.csv, err = newCSVLogger(filepath.Join(t.logDir, "metrics.csv"))
	if err != nil {
		return err
	}
	return t.writeRunInfo()
}

// LogDir returns the directory with the logs of this run.
func (t *Trainer) LogDir() string { return t.logDir }

// WeightsDir returns the directory where the checkpoints are saved: LastModelDir and BestModelDir
// are sub-directories of it.
func (t *Trainer) WeightsDir() string { return t.weightsDir }

// BestCheckpointDir returns the directory of the best model checkpoint.
func (t *Trainer) BestCheckpointDir() string { return filepath.Join(t.weightsDir, BestModelDir) }

// BestValidationLoss returns the lowest validation loss seen so far, or +Inf if no epoch has completed.
func (t *Trainer) BestValidationLoss() float64 { return t.bestValLoss }

// String implements fmt.Stringer.
func (t *Trainer) String() string {
	return fmt.Sprintf("Trainer[run=%s, %s, train=%d, validation=%d]", t.runID, t.model, t.trainData.Len(), t.valData.Len())
}

// Close the CSV and log files. Logging goes back to stderr only.
func (t *Trainer) Close() {
	if t.csv != nil {
		if err := t.csv.Close(); err != nil {
			klog.Errorf("Failed to close metrics file: %+v", err)
		}
		t.csv = nil
	}
	if t.logFile != nil {
		if err := t.logFile.Close(); err != nil {
			klog.Errorf("Failed to close log file: %+v", err)
		}
		t.logFile = nil
	}
}
