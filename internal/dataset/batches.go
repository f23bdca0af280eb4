package dataset

import (
	"github.com/gomlx/gomlx/types/tensors"
	"iter"
	"math/rand/v2"
)

// Batch of images and masks, as tensors ready to be fed to the model.
type Batch struct {
	// Images shaped [Size, height, width, 3].
	Images *tensors.Tensor

	// Masks shaped [Size, height, width, 1].
	Masks *tensors.Tensor

	// Size is the number of examples in the batch: it is smaller than the requested
	// batch size for the last batch of an epoch, if the dataset is not divisible by it.
	Size int
}

// NumBatches returns the number of batches in an epoch, including the last partial one.
func (ds *Dataset) NumBatches(batchSize int) int {
	return (ds.Len() + batchSize - 1) / batchSize
}

// Batches iterates over the dataset once, in batches of batchSize samples.
// The last batch is smaller if the dataset size is not divisible by batchSize.
//
// If rng is not nil, the samples are shuffled with it, otherwise they are returned in order.
func (ds *Dataset) Batches(batchSize int, rng *rand.Rand) iter.Seq[*Batch] {
	order := make([]int, ds.Len())
	for ii := range order {
		order[ii] = ii
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return func(yield func(*Batch) bool) {
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			if !yield(ds.makeBatch(order[start:end])) {
				return
			}
		}
	}
}

func (ds *Dataset) makeBatch(indices []int) *Batch {
	imageLen := ds.Size * ds.Size * 3
	maskLen := ds.Size * ds.Size
	images := make([]float32, 0, len(indices)*imageLen)
	masks := make([]float32, 0, len(indices)*maskLen)
	for _, idx := range indices {
		images = append(images, ds.Samples[idx].Image...)
		masks = append(masks, ds.Samples[idx].Mask...)
	}
	return &Batch{
		Images: tensors.FromFlatDataAndDimensions(images, len(indices), ds.Size, ds.Size, 3),
		Masks:  tensors.FromFlatDataAndDimensions(masks, len(indices), ds.Size, ds.Size, 1),
		Size:   len(indices),
	}
}
