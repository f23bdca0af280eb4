package trainer

import (
	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/segan/internal/dataset"
	"github.com/janpfeifer/segan/internal/losses"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// createExecutors for the forward (loss only) and training steps of both networks.
//
// Training executors are only called after the forward ones reported finite losses for the same
// inputs: since the weights didn't change in between, the training step sees the same losses.
func (t *Trainer) createExecutors() {
	m := t.model

	// Generator: (images, masks) -> (fakeMasks, loss).
	generatorGraph := func(ctx *context.Context, images, masks *Node) (fakeMasks, loss *Node) {
		fakeMasks = m.GenerateGraph(ctx, images)
		loss = losses.Combined(ctx, masks, fakeMasks)
		return
	}
	t.generateExec = context.NewExec(t.backend, m.Generator, func(ctx *context.Context, images, masks *Node) []*Node {
		fakeMasks, loss := generatorGraph(ctx, images, masks)
		return []*Node{fakeMasks, loss}
	})
	t.generatorTrainExec = context.NewExec(t.backend, m.Generator, func(ctx *context.Context, images, masks *Node) *Node {
		g := images.Graph()
		ctx.SetTraining(g, true)
		_, loss := generatorGraph(ctx, images, masks)
		t.optimizerG.UpdateGraph(ctx, g, loss)
		train.ExecPerStepUpdateGraphFn(ctx, g)
		return loss
	})

	// Discriminator: (images, masks, fakeMasks) -> (realLoss, fakeLoss).
	// fakeMasks are fed as inputs, so there is no path back into the generator.
	discriminatorGraph := func(ctx *context.Context, images, masks, fakeMasks *Node) (realLoss, fakeLoss *Node) {
		realScores := m.DiscriminateGraph(ctx, images, masks)
		fakeScores := m.DiscriminateGraph(ctx, images, fakeMasks)
		realLoss = losses.BinaryCrossEntropy(losses.ConstantLabels(realScores, t.cfg.RealLabel), realScores)
		fakeLoss = losses.BinaryCrossEntropy(losses.ConstantLabels(fakeScores, t.cfg.FakeLabel), fakeScores)
		return
	}
	t.discriminateExec = context.NewExec(t.backend, m.Discriminator, func(ctx *context.Context, images, masks, fakeMasks *Node) []*Node {
		realLoss, fakeLoss := discriminatorGraph(ctx, images, masks, fakeMasks)
		return []*Node{realLoss, fakeLoss}
	})
	t.discriminatorTrainExec = context.NewExec(t.backend, m.Discriminator, func(ctx *context.Context, images, masks, fakeMasks *Node) []*Node {
		g := images.Graph()
		ctx.SetTraining(g, true)
		realLoss, fakeLoss := discriminatorGraph(ctx, images, masks, fakeMasks)
		t.optimizerD.UpdateGraph(ctx, g, Add(realLoss, fakeLoss))
		train.ExecPerStepUpdateGraphFn(ctx, g)
		return []*Node{realLoss, fakeLoss}
	})
}

// applyLearningRates of the current epoch to both optimizers.
func (t *Trainer) applyLearningRates() {
	t.schedulerG.Apply(t.model.Generator)
	t.schedulerD.Apply(t.model.Discriminator)
	klog.V(1).Infof("Learning rates: generator=%g, discriminator=%g", t.schedulerG.LearningRate(), t.schedulerD.LearningRate())
}

// call the executor with the inputs, converting panics to errors.
func call(exec *context.Exec, inputs ...any) (outputs []*tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() { outputs = exec.Call(inputs...) })
	return
}

func tensorToFloat32(t *tensors.Tensor) float32 {
	return tensors.ToScalar[float32](t)
}

// checkNaN returns an error wrapping ErrNaNLoss if loss is NaN.
func checkNaN(name string, loss float32) error {
	if math32.IsNaN(loss) {
		klog.Errorf("NaN detected in %s. Stopping training.", name)
		return errors.Wrapf(ErrNaNLoss, "NaN in %s", name)
	}
	return nil
}

// generatorStep trains the generator on one batch.
// It returns the segmentation loss and the generated masks, both from before the update.
// If the loss is NaN, it returns ErrNaNLoss and the generator is not updated.
func (t *Trainer) generatorStep(batch *dataset.Batch) (loss float32, fakeMasks *tensors.Tensor, err error) {
	outputs, err := call(t.generateExec, batch.Images, batch.Masks)
	if err != nil {
		return 0, nil, errors.WithMessage(err, "generator forward step")
	}
	fakeMasks = outputs[0]
	loss = tensorToFloat32(outputs[1])
	if err = checkNaN("g_seg_loss", loss); err != nil {
		return 0, nil, err
	}
	if _, err = call(t.generatorTrainExec, batch.Images, batch.Masks); err != nil {
		return 0, nil, errors.WithMessage(err, "generator training step")
	}
	return loss, fakeMasks, nil
}

// discriminatorStep trains the discriminator on one batch: the real pairs (images, masks) and
// the fake pairs (images, fakeMasks). It returns the sum of the real and fake losses.
// If either loss is NaN, it returns ErrNaNLoss and the discriminator is not updated.
func (t *Trainer) discriminatorStep(batch *dataset.Batch, fakeMasks *tensors.Tensor) (loss float32, err error) {
	realLoss, fakeLoss, err := t.discriminatorLosses(batch, fakeMasks)
	if err != nil {
		return 0, err
	}
	if _, err = call(t.discriminatorTrainExec, batch.Images, batch.Masks, fakeMasks); err != nil {
		return 0, errors.WithMessage(err, "discriminator training step")
	}
	return realLoss + fakeLoss, nil
}

// evalDiscriminator returns the discriminator losses on the real and fake pairs, without training.
// NaN values are returned as is.
func (t *Trainer) evalDiscriminator(batch *dataset.Batch, fakeMasks *tensors.Tensor) (realLoss, fakeLoss float32, err error) {
	outputs, err := call(t.discriminateExec, batch.Images, batch.Masks, fakeMasks)
	if err != nil {
		return 0, 0, errors.WithMessage(err, "discriminator forward step")
	}
	return tensorToFloat32(outputs[0]), tensorToFloat32(outputs[1]), nil
}

// discriminatorLosses evaluates the discriminator losses, without training.
// It returns an error wrapping ErrNaNLoss if either is NaN.
func (t *Trainer) discriminatorLosses(batch *dataset.Batch, fakeMasks *tensors.Tensor) (realLoss, fakeLoss float32, err error) {
	realLoss, fakeLoss, err = t.evalDiscriminator(batch, fakeMasks)
	if err != nil {
		return 0, 0, err
	}
	if err = checkNaN("d_real_loss", realLoss); err != nil {
		return 0, 0, err
	}
	if err = checkNaN("d_fake_loss", fakeLoss); err != nil {
		return 0, 0, err
	}
	return realLoss, fakeLoss, nil
}
