// Package model implements the adversarial segmentation model in GoMLX: a generator (image -> mask)
// and a discriminator ((image, mask) -> probability the pair is real).
//
// Each sub-network owns its own context.Context, with its weights, hyperparameters, optimizer
// variables and global step. This keeps the two optimizations separate: a training step built on
// the generator context can only update the generator, and likewise for the discriminator.
package model

import (
	"fmt"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/janpfeifer/segan/internal/losses"
	"github.com/janpfeifer/segan/internal/parameters"
	"maps"
	"sync"
)

// Hyperparameters (context parameters) of the model.
const (
	// ParamFilters is the number of filters of the first convolution of each network.
	// It doubles at each downsampling level.
	ParamFilters = "filters"

	// ParamDepth is the number of downsampling levels (each halves the spatial dimensions).
	// Image sizes must be divisible by 2^depth.
	ParamDepth = "depth"

	// ParamDiscriminatorType is the discriminator context parameter with the DiscriminatorType.
	// It is saved with the checkpoint, so a loaded model recovers its architecture.
	ParamDiscriminatorType = "discriminator"
)

// Model holds the generator and discriminator contexts.
type Model struct {
	// Generator context, with the generator weights and hyperparameters.
	Generator *context.Context

	// Discriminator context, with the discriminator weights and hyperparameters.
	Discriminator *context.Context

	// DiscriminatorType selects the architecture of the discriminator head.
	DiscriminatorType DiscriminatorType

	// checkpoint handlers, one per directory saved to.
	muSave   sync.Mutex
	handlers map[string]*checkpoints.Handler
}

// zeroSeed replaces a seed of 0, which GoMLX initializers take as "no seed" (clock based).
const zeroSeed = 0x5e6a_2024

// initialSeed converts the user seed to a value for initializers.ParamInitialSeed.
func initialSeed(seed int64) int64 {
	if seed == initializers.NoSeed {
		return zeroSeed
	}
	return seed
}

// New creates a Model with freshly initialized contexts, with hyperparameters set to their defaults.
// Variables are only created (randomly initialized) the first time a graph using them is built.
//
// The seed makes the initialization reproducible: the generator initializers use seed and the
// discriminator ones seed+1.
func New(discriminatorType DiscriminatorType, seed int64) *Model {
	m := &Model{
		Generator:         context.New(),
		Discriminator:     context.New(),
		DiscriminatorType: discriminatorType,
		handlers:          make(map[string]*checkpoints.Handler),
	}
	m.Generator.RngStateFromSeed(seed)
	m.Generator.SetParams(map[string]any{
		ParamFilters:                  16,
		ParamDepth:                    3,
		activations.ParamActivation:   "relu",
		losses.ParamBCEWeight:         0.5,
		losses.ParamDiceWeight:        0.5,
		initializers.ParamInitialSeed: initialSeed(seed),
	})

	m.Discriminator.RngStateFromSeed(seed + 1)
	m.Discriminator.SetParams(map[string]any{
		ParamFilters:                16,
		ParamDepth:                  3,
		ParamDiscriminatorType:      discriminatorType.String(),
		activations.ParamActivation: "leaky_relu",

		// FNN head, only used by DiscriminatorGlobal.
		fnnLayer.ParamNumHiddenLayers: 1,
		fnnLayer.ParamNumHiddenNodes:  32,
		fnnLayer.ParamResidual:        false,
		fnnLayer.ParamNormalization:   "none",
		initializers.ParamInitialSeed: initialSeed(seed + 1),
	})
	m.setInitializers()
	return m
}

// setInitializers installs the He initializer, seeded from each context's initializers.ParamInitialSeed.
func (m *Model) setInitializers() {
	m.Generator = m.Generator.Checked(false)
	m.Generator = m.Generator.WithInitializer(initializers.HeFn(m.Generator))
	m.Discriminator = m.Discriminator.Checked(false)
	m.Discriminator = m.Discriminator.WithInitializer(initializers.HeFn(m.Discriminator))
}

// String implements fmt.Stringer.
func (m *Model) String() string {
	return fmt.Sprintf("GAN[generator=unet(filters=%d, depth=%d), discriminator=%s(filters=%d, depth=%d)]",
		context.GetParamOr(m.Generator, ParamFilters, 0), context.GetParamOr(m.Generator, ParamDepth, 0),
		m.DiscriminatorType,
		context.GetParamOr(m.Discriminator, ParamFilters, 0), context.GetParamOr(m.Discriminator, ParamDepth, 0))
}

// SetHyperparameters overrides the hyperparameters of both networks from params.
// A key known by both contexts (e.g. "filters") is applied to both.
// Keys used are popped from params, unknown ones are left there.
func (m *Model) SetHyperparameters(params parameters.Params) error {
	discParams := maps.Clone(params)
	if err := parameters.ToContext(params, m.Generator); err != nil {
		return err
	}
	if err := parameters.ToContext(discParams, m.Discriminator); err != nil {
		return err
	}
	for key := range maps.Clone(params) {
		if _, found := discParams[key]; !found {
			delete(params, key)
		}
	}
	// The seed may have changed.
	m.setInitializers()
	return nil
}

// GenerateGraph builds the generator: a U-Net like encoder/decoder with skip connections.
//
// images are shaped [batch, height, width, 3], and the returned mask probabilities are shaped
// [batch, height, width, 1].
func (m *Model) GenerateGraph(ctx *context.Context, images *Node) *Node {
	ctx = ctx.In("generator")
	filters := context.GetParamOr(ctx, ParamFilters, 16)
	depth := context.GetParamOr(ctx, ParamDepth, 3)
	assertDivisible(images, depth)

	x := convBlock(ctx.In("stem"), images, filters, 1)
	skips := make([]*Node, 0, depth)
	for level := range depth {
		skips = append(skips, x)
		filters *= 2
		x = convBlock(ctx.In(fmt.Sprintf("down_%d", level)), x, filters, 2)
	}
	x = convBlock(ctx.In("bottleneck"), x, filters, 1)
	for level := depth - 1; level >= 0; level-- {
		filters /= 2
		x = upsample2x(x)
		x = Concatenate([]*Node{x, skips[level]}, -1)
		x = convBlock(ctx.In(fmt.Sprintf("up_%d", level)), x, filters, 1)
	}
	logits := layers.Convolution(ctx.In("output"), x).
		Filters(1).
		KernelSize(1).
		Done()
	return Sigmoid(logits)
}

// DiscriminateGraph builds the discriminator on the (images, masks) pair concatenated on the channels axis.
//
// It returns the probabilities that the pairs are real. For DiscriminatorPatch it is shaped
// [batch, height/2^depth, width/2^depth, 1] (one score per patch), and for DiscriminatorGlobal [batch, 1].
func (m *Model) DiscriminateGraph(ctx *context.Context, images, masks *Node) *Node {
	ctx = ctx.In("discriminator")
	filters := context.GetParamOr(ctx, ParamFilters, 16)
	depth := context.GetParamOr(ctx, ParamDepth, 3)
	assertDivisible(images, depth)

	masks = ConvertDType(masks, images.DType())
	x := Concatenate([]*Node{images, masks}, -1)
	for level := range depth {
		x = convBlock(ctx.In(fmt.Sprintf("down_%d", level)), x, filters, 2)
		filters *= 2
	}
	var logits *Node
	switch m.DiscriminatorType {
	case DiscriminatorPatch:
		logits = layers.Convolution(ctx.In("patch_logits"), x).
			Filters(1).
			KernelSize(3).
			PadSame().
			Done()
	case DiscriminatorGlobal:
		// Global average pooling over the spatial axes, followed by an FNN.
		pooled := ReduceMean(x, 1, 2)
		logits = fnnLayer.New(ctx.In("fnn"), pooled, 1).Done()
	default:
		exceptions.Panicf("discriminator type %s not implemented", m.DiscriminatorType)
	}
	return Sigmoid(logits)
}

// convBlock is a 3x3 convolution followed by the configured activation.
func convBlock(ctx *context.Context, x *Node, filters, strides int) *Node {
	x = layers.Convolution(ctx, x).
		Filters(filters).
		KernelSize(3).
		Strides(strides).
		PadSame().
		Done()
	return activations.ApplyFromContext(ctx, x)
}

// upsample2x doubles the spatial dimensions of x (shaped [batch, height, width, channels]),
// repeating each value (nearest neighbor).
func upsample2x(x *Node) *Node {
	dims := x.Shape().Dimensions
	batchSize, height, width, channels := dims[0], dims[1], dims[2], dims[3]
	x = Reshape(x, batchSize, height, 1, width, 1, channels)
	x = BroadcastToDims(x, batchSize, height, 2, width, 2, channels)
	return Reshape(x, batchSize, 2*height, 2*width, channels)
}

func assertDivisible(images *Node, depth int) {
	if images.Rank() != 4 {
		exceptions.Panicf("images must be shaped [batch, height, width, channels], got %s", images.Shape())
	}
	factor := 1 << depth
	height, width := images.Shape().Dim(1), images.Shape().Dim(2)
	if height%factor != 0 || width%factor != 0 {
		exceptions.Panicf("image dimensions %dx%d must be divisible by 2^depth=%d", height, width, factor)
	}
}
