// Package metrics computes binary segmentation metrics (foreground IoU, recall, precision, accuracy,
// dice and F2) from predicted mask probabilities and target masks.
package metrics

import (
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/segan/internal/generics"
	"github.com/pkg/errors"
)

// Names of the metrics returned by Segmentation.Compute, in the order they are reported.
var Names = []string{"mean_iou", "recall", "precision", "accuracy", "dice", "f2"}

// epsilon smooths the denominators, so empty masks don't yield NaNs.
const epsilon = 1e-7

// Segmentation accumulates the confusion counts of the foreground class over predicted masks.
// Predictions >= Threshold are considered foreground, as are targets >= 0.5.
//
// It is not safe for concurrent use.
type Segmentation struct {
	Threshold float32

	tp, fp, fn, tn float64
}

// NewSegmentation returns a new accumulator with the given threshold.
func NewSegmentation(threshold float64) *Segmentation {
	return &Segmentation{Threshold: float32(threshold)}
}

// Reset the accumulated counts.
func (s *Segmentation) Reset() {
	s.tp, s.fp, s.fn, s.tn = 0, 0, 0, 0
}

// Update accumulates the counts of a batch of predicted masks (probabilities) and targets,
// both float32 tensors with the same shape.
func (s *Segmentation) Update(prediction, target *tensors.Tensor) error {
	if !prediction.Shape().Equal(target.Shape()) {
		return errors.Errorf("prediction shape %s differs from target shape %s", prediction.Shape(), target.Shape())
	}
	if prediction.DType() != dtypes.Float32 || target.DType() != dtypes.Float32 {
		return errors.Errorf("metrics require float32 masks, got prediction %s and target %s",
			prediction.DType(), target.DType())
	}
	s.UpdateFlat(tensors.CopyFlatData[float32](prediction), tensors.CopyFlatData[float32](target))
	return nil
}

// UpdateFlat accumulates the counts of flat predictions and targets. They must have the same length.
func (s *Segmentation) UpdateFlat(prediction, target []float32) {
	for ii, p := range prediction {
		predicted := p >= s.Threshold
		actual := target[ii] >= 0.5
		switch {
		case predicted && actual:
			s.tp++
		case predicted && !actual:
			s.fp++
		case !predicted && actual:
			s.fn++
		default:
			s.tn++
		}
	}
}

// Compute returns the metrics of the counts accumulated so far, keyed by the Names.
func (s *Segmentation) Compute() map[string]float64 {
	precision := s.tp / (s.tp + s.fp + epsilon)
	recall := s.tp / (s.tp + s.fn + epsilon)
	return map[string]float64{
		"mean_iou":  s.tp / (s.tp + s.fp + s.fn + epsilon),
		"recall":    recall,
		"precision": precision,
		"accuracy":  (s.tp + s.tn) / (s.tp + s.fp + s.fn + s.tn + epsilon),
		"dice":      2 * s.tp / (2*s.tp + s.fp + s.fn + epsilon),
		"f2":        5 * precision * recall / (4*precision + recall + epsilon),
	}
}

// Averager averages metrics over batches: each Add counts as one sample, regardless of the batch size.
type Averager struct {
	means map[string]*generics.RunningMean[float64]
}

// NewAverager creates an empty Averager.
func NewAverager() *Averager {
	return &Averager{means: make(map[string]*generics.RunningMean[float64])}
}

// Add one set of metrics.
func (a *Averager) Add(metrics map[string]float64) {
	for name, value := range metrics {
		mean, found := a.means[name]
		if !found {
			mean = &generics.RunningMean[float64]{}
			a.means[name] = mean
		}
		mean.Add(value)
	}
}

// Means returns the current averages, keyed by metric name.
func (a *Averager) Means() map[string]float64 {
	means := make(map[string]float64, len(a.means))
	for name, mean := range a.means {
		means[name] = mean.Mean()
	}
	return means
}
