package trainer

import (
	"context"
	"fmt"
	"github.com/chewxy/math32"
	"github.com/janpfeifer/segan/internal/generics"
	"github.com/janpfeifer/segan/internal/metrics"
	"github.com/janpfeifer/segan/internal/ui/progress"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"math"
	"path/filepath"
	"slices"
	"time"
)

// EpochResults holds the averages over one pass (training or validation) of the data.
type EpochResults struct {
	// GeneratorLoss is the segmentation loss of the generator (the validation loss for a validation pass).
	GeneratorLoss float64

	// DiscriminatorLoss is the sum of the discriminator real and fake losses.
	DiscriminatorLoss float64

	// Metrics keyed by metrics.Names.
	Metrics map[string]float64
}

// Train runs the configured number of epochs.
//
// It returns ctx.Err() if ctx is cancelled (checked between batches), an error wrapping ErrNaNLoss if
// any loss becomes NaN, or any other error from the executors or from saving checkpoints and logs.
// Checkpoints and logs of the completed epochs are kept in any case.
func (t *Trainer) Train(ctx context.Context) error {
	klog.Infof("Starting training: %s", t)
	klog.Infof("Logs and checkpoints in %s", t.logDir)
	start := time.Now()
	for epoch := 1; epoch <= t.cfg.NumEpochs; epoch++ {
		if err := t.runEpoch(ctx, epoch); err != nil {
			return err
		}
	}
	klog.Infof("Training finished in %s, best validation loss %.4f", time.Since(start).Round(time.Second), t.bestValLoss)
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int) error {
	t.applyLearningRates()
	trainResults, err := t.trainOneEpoch(ctx, epoch)
	if err != nil {
		return err
	}
	valResults, err := t.validate(ctx)
	if err != nil {
		return err
	}
	klog.Infof("Epoch [%d/%d] - Train G Loss: %.4f, Train D Loss: %.4f, Val Loss: %.4f, Val D Loss: %.4f, "+
		"Mean IoU: %.4f, Dice: %.4f, Recall: %.4f, Precision: %.4f, Accuracy: %.4f, F2: %.4f",
		epoch, t.cfg.NumEpochs, trainResults.GeneratorLoss, trainResults.DiscriminatorLoss,
		valResults.GeneratorLoss, valResults.DiscriminatorLoss,
		valResults.Metrics["mean_iou"], valResults.Metrics["dice"], valResults.Metrics["recall"],
		valResults.Metrics["precision"], valResults.Metrics["accuracy"], valResults.Metrics["f2"])
	if err = t.csv.Write(epoch, trainResults, valResults); err != nil {
		return err
	}
	if err = t.saveModel(t.updateBest(valResults.GeneratorLoss)); err != nil {
		return err
	}
	t.schedulerG.Step()
	t.schedulerD.Step()
	return nil
}

// updateBest records valLoss and returns whether it is strictly below the best one seen so far.
func (t *Trainer) updateBest(valLoss float64) bool {
	if valLoss < t.bestValLoss {
		t.bestValLoss = valLoss
		return true
	}
	return false
}

// saveModel saves the last model checkpoint, and the best model one if isBest.
func (t *Trainer) saveModel(isBest bool) error {
	lastDir := filepath.Join(t.weightsDir, LastModelDir)
	if err := t.model.SaveCheckpoint(lastDir); err != nil {
		return err
	}
	klog.Infof("Saved model checkpoint at %s", lastDir)
	if isBest {
		bestDir := t.BestCheckpointDir()
		if err := t.model.SaveBestCheckpoint(bestDir); err != nil {
			return err
		}
		klog.Infof("Saved best model checkpoint at %s", bestDir)
	}
	return nil
}

// progressKeys are shown in the progress bars, in this order.
var progressKeys = slices.Concat([]string{"g_loss", "d_loss", "val_loss"}, metrics.Names)

// trainOneEpoch runs one generator step and one discriminator step per batch of the (shuffled) training data.
func (t *Trainer) trainOneEpoch(ctx context.Context, epoch int) (*EpochResults, error) {
	var gLoss, dLoss generics.RunningMean[float64]
	averager := metrics.NewAverager()
	bar := progress.New(fmt.Sprintf("Epoch %d/%d", epoch, t.cfg.NumEpochs), t.trainData.NumBatches(t.cfg.BatchSize), false)
	defer bar.Finish()
	for batch := range t.trainData.Batches(t.cfg.BatchSize, t.shuffleRng) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, fakeMasks, err := t.generatorStep(batch)
		if err != nil {
			return nil, err
		}
		d, err := t.discriminatorStep(batch, fakeMasks)
		if err != nil {
			return nil, err
		}
		if err = t.metrics.Update(fakeMasks, batch.Masks); err != nil {
			return nil, errors.WithMessage(err, "training metrics")
		}
		averager.Add(t.metrics.Compute())
		t.metrics.Reset()
		gLoss.Add(float64(g))
		dLoss.Add(float64(d))

		postfix := averager.Means()
		postfix["g_loss"] = float64(g)
		postfix["d_loss"] = float64(d)
		bar.Add(progress.Postfix(progressKeys, postfix))
	}
	return &EpochResults{
		GeneratorLoss:     gLoss.Mean(),
		DiscriminatorLoss: dLoss.Mean(),
		Metrics:           averager.Means(),
	}, nil
}

// validate evaluates the generator (and the discriminator) on the validation data, without training.
// The progress bar shows the running averages.
//
// A NaN validation loss is an error wrapping ErrNaNLoss. The discriminator loss is only informative:
// batches where it is NaN are logged and left out of its average, which is NaN if all of them were.
func (t *Trainer) validate(ctx context.Context) (*EpochResults, error) {
	var valLoss, dLoss generics.RunningMean[float64]
	var nanDLossBatches int
	averager := metrics.NewAverager()
	bar := progress.New("Validating", t.valData.NumBatches(t.cfg.BatchSize), true)
	defer bar.Finish()
	for batch := range t.valData.Batches(t.cfg.BatchSize, nil) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outputs, err := call(t.generateExec, batch.Images, batch.Masks)
		if err != nil {
			return nil, errors.WithMessage(err, "validation step")
		}
		fakeMasks := outputs[0]
		loss := tensorToFloat32(outputs[1])
		if err = checkNaN("val_loss", loss); err != nil {
			return nil, err
		}
		realLoss, fakeLoss, err := t.evalDiscriminator(batch, fakeMasks)
		if err != nil {
			return nil, errors.WithMessage(err, "validation step")
		}
		if dBatchLoss := realLoss + fakeLoss; math32.IsNaN(dBatchLoss) {
			nanDLossBatches++
		} else {
			dLoss.Add(float64(dBatchLoss))
		}
		if err = t.metrics.Update(fakeMasks, batch.Masks); err != nil {
			return nil, errors.WithMessage(err, "validation metrics")
		}
		averager.Add(t.metrics.Compute())
		t.metrics.Reset()
		valLoss.Add(float64(loss))

		postfix := averager.Means()
		postfix["val_loss"] = valLoss.Mean()
		bar.Add(progress.Postfix(progressKeys, postfix))
	}
	results := &EpochResults{
		GeneratorLoss:     valLoss.Mean(),
		DiscriminatorLoss: dLoss.Mean(),
		Metrics:           averager.Means(),
	}
	if nanDLossBatches > 0 {
		klog.Warningf("NaN in val_d_loss for %d of %d validation batches", nanDLossBatches, bar.Count())
		if dLoss.Count == 0 {
			results.DiscriminatorLoss = math.NaN()
		}
	}
	return results, nil
}
