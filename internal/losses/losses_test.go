package losses

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/require"
	"math"
	"testing"

	_ "github.com/gomlx/gomlx/backends/xla"
)

func execLoss(t *testing.T, ctx *context.Context, fn func(ctx *context.Context, labels, probs *graph.Node) *graph.Node,
	labels, probs [][]float32) float64 {
	backend := graphtest.BuildTestBackend()
	lossT := context.ExecOnce(backend, ctx, func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
		return fn(ctx, inputs[0], inputs[1])
	}, tensors.FromValue(labels), tensors.FromValue(probs))
	lossT.Shape().AssertScalar()
	return float64(tensors.ToScalar[float32](lossT))
}

func TestBinaryCrossEntropy(t *testing.T) {
	bce := func(_ *context.Context, labels, probs *graph.Node) *graph.Node { return BinaryCrossEntropy(labels, probs) }
	ctx := context.New()

	got := execLoss(t, ctx, bce, [][]float32{{1, 0}}, [][]float32{{0.8, 0.4}})
	want := -(math.Log(0.8) + math.Log(0.6)) / 2
	require.InDelta(t, want, got, 1e-5)

	// Soft real label of 0.9, as used by the discriminator.
	got = execLoss(t, ctx, bce, [][]float32{{0.9}}, [][]float32{{0.5}})
	require.InDelta(t, math.Log(2), got, 1e-5)

	// Saturated predictions are clipped and don't produce infinities.
	got = execLoss(t, ctx, bce, [][]float32{{1, 0}}, [][]float32{{0, 1}})
	require.False(t, math.IsInf(got, 0) || math.IsNaN(got))
	require.InDelta(t, -math.Log(Epsilon), got, 0.5)
}

func TestDice(t *testing.T) {
	dice := func(_ *context.Context, labels, probs *graph.Node) *graph.Node { return Dice(labels, probs) }
	ctx := context.New()

	// Perfect prediction.
	got := execLoss(t, ctx, dice, [][]float32{{1, 1, 0, 0}}, [][]float32{{1, 1, 0, 0}})
	require.InDelta(t, 0.0, got, 1e-6)

	// intersection=1, sum(labels)=2, sum(probs)=2 -> 1 - 3/5.
	got = execLoss(t, ctx, dice, [][]float32{{1, 1, 0, 0}}, [][]float32{{1, 0, 1, 0}})
	require.InDelta(t, 0.4, got, 1e-6)
}

func TestCombined(t *testing.T) {
	ctx := context.New()
	ctx.SetParams(map[string]any{ParamBCEWeight: 1.0, ParamDiceWeight: 0.0})
	labels := [][]float32{{1, 0, 1, 0}}
	probs := [][]float32{{0.7, 0.2, 0.6, 0.1}}
	combined := execLoss(t, ctx, Combined, labels, probs)
	bce := execLoss(t, ctx, func(_ *context.Context, l, p *graph.Node) *graph.Node { return BinaryCrossEntropy(l, p) }, labels, probs)
	require.InDelta(t, bce, combined, 1e-6)

	ctx.SetParams(map[string]any{ParamBCEWeight: 0.5, ParamDiceWeight: 0.5})
	dice := execLoss(t, ctx, func(_ *context.Context, l, p *graph.Node) *graph.Node { return Dice(l, p) }, labels, probs)
	combined = execLoss(t, ctx, Combined, labels, probs)
	require.InDelta(t, 0.5*bce+0.5*dice, combined, 1e-6)
}
