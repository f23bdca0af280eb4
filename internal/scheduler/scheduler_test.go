package scheduler

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
)

func TestStepDecay(t *testing.T) {
	s := NewStepDecay(2e-4, 0.5, 3)
	for epoch := range 10 {
		want := 2e-4 * math.Pow(0.5, math.Floor(float64(epoch)/3))
		assert.Equal(t, epoch, s.Epoch())
		assert.InDelta(t, want, s.LearningRate(), 1e-12, "epoch %d", epoch)
		s.Step()
	}
}

func TestApply(t *testing.T) {
	ctx := context.New()
	s := NewStepDecay(0.1, 0.1, 1)
	s.Apply(ctx)
	s.Step()
	s.Apply(ctx)
	assert.InDelta(t, 0.01, context.GetParamOr(ctx, optimizers.ParamLearningRate, 0.0), 1e-9)
	lr := tensors.ToScalar[float32](optimizers.LearningRateVar(ctx, dtypes.Float32, 0).Value())
	assert.InDelta(t, 0.01, float64(lr), 1e-7)
}
