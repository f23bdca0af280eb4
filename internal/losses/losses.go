// Package losses implements the GoMLX loss graphs used by the adversarial segmentation training:
// the generator's combined segmentation loss (binary cross-entropy + soft dice) and the
// discriminator's binary cross-entropy.
//
// All losses take probabilities (not logits) and return a scalar.
package losses

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
)

const (
	// ParamBCEWeight is the context hyperparameter with the weight of the binary cross-entropy term of Combined.
	ParamBCEWeight = "bce_weight"

	// ParamDiceWeight is the context hyperparameter with the weight of the dice term of Combined.
	ParamDiceWeight = "dice_weight"

	// Epsilon used to clip probabilities before taking their log.
	Epsilon = 1e-7

	// diceSmooth is added to the numerator and denominator of the dice coefficient.
	diceSmooth = 1.0
)

// BinaryCrossEntropy returns the mean binary cross-entropy between labels and probs.
// Both must have the same shape. Probabilities are clipped to [Epsilon, 1-Epsilon].
func BinaryCrossEntropy(labels, probs *Node) *Node {
	labels = ConvertDType(labels, probs.DType())
	probs = ClipScalar(probs, Epsilon, 1.0-Epsilon)
	perElement := Neg(Add(
		Mul(labels, Log(probs)),
		Mul(OneMinus(labels), Log(OneMinus(probs)))))
	return ReduceAllMean(perElement)
}

// Dice returns the soft dice loss, 1 - dice coefficient, computed over the whole batch.
func Dice(labels, probs *Node) *Node {
	labels = ConvertDType(labels, probs.DType())
	intersection := ReduceAllSum(Mul(labels, probs))
	total := Add(ReduceAllSum(labels), ReduceAllSum(probs))
	coefficient := Div(
		AddScalar(MulScalar(intersection, 2), diceSmooth),
		AddScalar(total, diceSmooth))
	return OneMinus(coefficient)
}

// Combined is the generator segmentation loss: a weighted sum of BinaryCrossEntropy and Dice.
// The weights are read from the context hyperparameters ParamBCEWeight and ParamDiceWeight (both default to 0.5).
func Combined(ctx *context.Context, labels, probs *Node) *Node {
	bceWeight := context.GetParamOr(ctx, ParamBCEWeight, 0.5)
	diceWeight := context.GetParamOr(ctx, ParamDiceWeight, 0.5)
	return Add(
		MulScalar(BinaryCrossEntropy(labels, probs), bceWeight),
		MulScalar(Dice(labels, probs), diceWeight))
}

// ConstantLabels returns labels shaped like predictions, all set to value.
// Used for the discriminator targets: e.g. 0.9 for real pairs (label smoothing) and 0 for fake pairs.
func ConstantLabels(predictions *Node, value float64) *Node {
	return MulScalar(OnesLike(predictions), value)
}
