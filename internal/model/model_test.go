package model

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/segan/internal/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"

	_ "github.com/gomlx/gomlx/backends/xla"
)

// smallModel returns a model small enough for quick tests on 16x16 images.
func smallModel(t *testing.T, discType DiscriminatorType) *Model {
	return smallModelWithSeed(t, discType, 42)
}

func smallModelWithSeed(t *testing.T, discType DiscriminatorType, seed int64) *Model {
	m := New(discType, seed)
	require.NoError(t, m.SetHyperparameters(parameters.Params{ParamFilters: "4", ParamDepth: "2"}))
	return m
}

func randomImages(batchSize, size, channels int) [][][][]float32 {
	images := make([][][][]float32, batchSize)
	for b := range images {
		images[b] = make([][][]float32, size)
		for y := range images[b] {
			images[b][y] = make([][]float32, size)
			for x := range images[b][y] {
				images[b][y][x] = make([]float32, channels)
				for c := range channels {
					images[b][y][x][c] = float32((b+y*size+x+c)%7) / 7
				}
			}
		}
	}
	return images
}

func TestGenerateGraph(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m := smallModel(t, DiscriminatorPatch)
	masks := context.ExecOnce(backend, m.Generator, func(ctx *context.Context, images *graph.Node) *graph.Node {
		return m.GenerateGraph(ctx, images)
	}, randomImages(2, 16, 3))
	assert.Equal(t, []int{2, 16, 16, 1}, masks.Shape().Dimensions)
	for _, v := range tensors.CopyFlatData[float32](masks) {
		require.True(t, v >= 0 && v <= 1, "generated mask must be probabilities, got %g", v)
	}
}

func TestDiscriminateGraph(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for discType, wantDims := range map[DiscriminatorType][]int{
		DiscriminatorPatch:  {3, 4, 4, 1},
		DiscriminatorGlobal: {3, 1},
	} {
		t.Run(discType.String(), func(t *testing.T) {
			m := smallModel(t, discType)
			scores := context.ExecOnce(backend, m.Discriminator, func(ctx *context.Context, images, masks *graph.Node) *graph.Node {
				return m.DiscriminateGraph(ctx, images, masks)
			}, randomImages(3, 16, 3), randomImages(3, 16, 1))
			assert.Equal(t, wantDims, scores.Shape().Dimensions)
		})
	}
}

func TestUpsample2x(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	got := graph.ExecOnce(backend, upsample2x, [][][][]float32{{{{1}, {2}}, {{3}, {4}}}})
	want := [][][][]float32{{
		{{1}, {1}, {2}, {2}},
		{{1}, {1}, {2}, {2}},
		{{3}, {3}, {4}, {4}},
		{{3}, {3}, {4}, {4}},
	}}
	assert.Equal(t, want, got.Value())
}

// initialVariables builds both networks and returns the flattened values of every variable, by scope and name.
func initialVariables(t *testing.T, m *Model) map[string][]float32 {
	backend := graphtest.BuildTestBackend()
	images, masks := randomImages(1, 16, 3), randomImages(1, 16, 1)
	context.ExecOnce(backend, m.Generator, func(ctx *context.Context, images *graph.Node) *graph.Node {
		return m.GenerateGraph(ctx, images)
	}, images)
	context.ExecOnce(backend, m.Discriminator, func(ctx *context.Context, images, masks *graph.Node) *graph.Node {
		return m.DiscriminateGraph(ctx, images, masks)
	}, images, masks)
	values := make(map[string][]float32)
	for _, ctx := range []*context.Context{m.Generator, m.Discriminator} {
		ctx.EnumerateVariables(func(v *context.Variable) {
			if v.Trainable {
				values[v.ScopeAndName()] = tensors.CopyFlatData[float32](v.Value())
			}
		})
	}
	require.NotEmpty(t, values)
	return values
}

func TestSeededInitialization(t *testing.T) {
	for _, seed := range []int64{42, 0} {
		first := initialVariables(t, smallModelWithSeed(t, DiscriminatorGlobal, seed))
		second := initialVariables(t, smallModelWithSeed(t, DiscriminatorGlobal, seed))
		require.Equal(t, first, second, "seed %d", seed)
	}
	other := initialVariables(t, smallModelWithSeed(t, DiscriminatorGlobal, 43))
	require.NotEqual(t, initialVariables(t, smallModelWithSeed(t, DiscriminatorGlobal, 42)), other)

	// Changing the seed hyperparameter reinstalls the initializers.
	m := New(DiscriminatorGlobal, 42)
	require.NoError(t, m.SetHyperparameters(parameters.Params{
		ParamFilters: "4", ParamDepth: "2", initializers.ParamInitialSeed: "43"}))
	require.NotEqual(t, initialVariables(t, smallModel(t, DiscriminatorGlobal)), initialVariables(t, m))
}

func TestSetHyperparameters(t *testing.T) {
	m := New(DiscriminatorPatch, 1)
	params := parameters.Params{ParamFilters: "8", "dice_weight": "0.7", "unknown": "x"}
	require.NoError(t, m.SetHyperparameters(params))
	assert.Equal(t, 8, context.GetParamOr(m.Generator, ParamFilters, 0))
	assert.Equal(t, 8, context.GetParamOr(m.Discriminator, ParamFilters, 0))
	assert.Equal(t, 0.7, context.GetParamOr(m.Generator, "dice_weight", 0.0))
	assert.Equal(t, []string{"unknown"}, parameters.Keys(params))
}

func TestCheckpoint(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	images := randomImages(1, 16, 3)
	generate := func(m *Model) []float32 {
		exec := context.NewExec(backend, m.Generator, func(ctx *context.Context, images *graph.Node) *graph.Node {
			return m.GenerateGraph(ctx, images)
		})
		return tensors.CopyFlatData[float32](exec.Call(images)[0])
	}
	discriminate := func(m *Model) []float32 {
		return tensors.CopyFlatData[float32](context.ExecOnce(backend, m.Discriminator,
			func(ctx *context.Context, images, masks *graph.Node) *graph.Node {
				return m.DiscriminateGraph(ctx, images, masks)
			}, images, randomImages(1, 16, 1)))
	}

	m := smallModel(t, DiscriminatorGlobal)
	want := generate(m)
	wantScores := discriminate(m)
	dir := filepath.Join(t.TempDir(), "last_model")
	require.NoError(t, m.SaveCheckpoint(dir))
	// Saving a second time to the same directory reuses the handler.
	require.NoError(t, m.SaveCheckpoint(dir))

	// A model with a different seed and architecture recovers the saved one.
	loaded := New(DiscriminatorPatch, 7)
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, DiscriminatorGlobal, loaded.DiscriminatorType)
	assert.Equal(t, 4, context.GetParamOr(loaded.Generator, ParamFilters, 0))
	assert.Equal(t, want, generate(loaded))
	assert.Equal(t, wantScores, discriminate(loaded))

	generatorOnly := New(DiscriminatorPatch, 7)
	require.NoError(t, generatorOnly.LoadGenerator(dir))
	assert.Equal(t, want, generate(generatorOnly))

	require.Error(t, New(DiscriminatorPatch, 7).Load(filepath.Join(t.TempDir(), "missing")))
}
