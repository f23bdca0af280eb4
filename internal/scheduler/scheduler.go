// Package scheduler implements the per-epoch step decay of an optimizer's learning rate.
package scheduler

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"math"
)

// StepDecay multiplies the learning rate by Gamma every StepSize epochs:
//
//	lr(epoch) = Initial * Gamma^floor(epoch/StepSize)
//
// The learning rate lives in the optimizer's learning rate variable of a context, and in its
// optimizers.ParamLearningRate hyperparameter, both updated by Apply.
type StepDecay struct {
	Initial  float64
	Gamma    float64
	StepSize int

	epoch int
}

// NewStepDecay creates a StepDecay at epoch 0.
func NewStepDecay(initial, gamma float64, stepSize int) *StepDecay {
	return &StepDecay{Initial: initial, Gamma: gamma, StepSize: stepSize}
}

// Epoch returns the number of times Step was called.
func (s *StepDecay) Epoch() int { return s.epoch }

// LearningRate for the current epoch.
func (s *StepDecay) LearningRate() float64 {
	return s.Initial * math.Pow(s.Gamma, float64(s.epoch/s.StepSize))
}

// Step advances one epoch.
func (s *StepDecay) Step() {
	s.epoch++
}

// Apply sets the current learning rate in ctx, the context of the network being optimized.
// It can be called before the optimizer graph is built, in which case it creates the variable.
func (s *StepDecay) Apply(ctx *context.Context) {
	lr := s.LearningRate()
	ctx.SetParam(optimizers.ParamLearningRate, lr)
	lrVar := optimizers.LearningRateVar(ctx, dtypes.Float32, lr)
	lrVar.SetValue(tensors.FromScalar(float32(lr)))
}
