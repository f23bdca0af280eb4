// Package dataset holds the in-memory segmentation datasets: pairs of images (HxWx3, values in [0, 1])
// and binary masks (HxWx1, values in {0, 1}), all resized to the same square size.
//
// Datasets are loaded from a directory of images and a directory of masks (see Config and Load),
// can be merged, split into train/validation and into k folds, and iterated in batches of tensors.
package dataset

import (
	"github.com/pkg/errors"
	"math/rand/v2"
	"slices"
)

// Sample is one image and its segmentation mask.
type Sample struct {
	// Name of the sample, the base name of the image file without extension.
	Name string

	// Image is shaped [Size, Size, 3] (row-major), with values in [0, 1].
	Image []float32

	// Mask is shaped [Size, Size, 1] (row-major), with values 0 or 1.
	Mask []float32
}

// Dataset is a list of samples, all with the same size.
type Dataset struct {
	Name string

	// Size of the (square) images and masks.
	Size int

	Samples []*Sample
}

// Len returns the number of samples.
func (ds *Dataset) Len() int { return len(ds.Samples) }

// MemoryBytes is the approximate memory used by the images and masks.
func (ds *Dataset) MemoryBytes() uint64 {
	return uint64(ds.Len()) * uint64(ds.Size*ds.Size*4) * 4
}

// Merge returns a new dataset with the samples of both datasets. Samples are shared, not copied.
func Merge(a, b *Dataset) (*Dataset, error) {
	if a.Size != b.Size {
		return nil, errors.Errorf("cannot merge datasets %q and %q with different sizes (%d and %d)",
			a.Name, b.Name, a.Size, b.Size)
	}
	return &Dataset{
		Name:    a.Name + "+" + b.Name,
		Size:    a.Size,
		Samples: slices.Concat(a.Samples, b.Samples),
	}, nil
}

// Subset returns a new dataset with the samples of the given indices, in the order given.
// It panics if an index is out of range.
func (ds *Dataset) Subset(indices []int) *Dataset {
	samples := make([]*Sample, len(indices))
	for ii, idx := range indices {
		samples[ii] = ds.Samples[idx]
	}
	return &Dataset{Name: ds.Name, Size: ds.Size, Samples: samples}
}

// newRand returns the deterministic random number generator used for a seed.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Split the dataset randomly into train and validation subsets, with int(trainRatio*Len()) samples
// for training. The same seed always yields the same split.
func (ds *Dataset) Split(trainRatio float64, seed int64) (train, validation *Dataset) {
	perm := newRand(seed).Perm(ds.Len())
	numTrain := int(trainRatio * float64(ds.Len()))
	return ds.Subset(perm[:numTrain]), ds.Subset(perm[numTrain:])
}

// Fold of a k-fold cross-validation: indices of the samples used to train and to test.
type Fold struct {
	Train, Test []int
}

// KFold shuffles the samples indices and splits them into k folds. Each fold uses one of the
// k parts as test and the others as train. The first Len()%k parts have one extra sample.
func (ds *Dataset) KFold(k int, seed int64) ([]Fold, error) {
	n := ds.Len()
	if k < 2 || k > n {
		return nil, errors.Errorf("k-fold requires 2 <= k <= number of samples (%d), got k=%d", n, k)
	}
	perm := newRand(seed).Perm(n)
	folds := make([]Fold, k)
	start := 0
	for foldIdx := range k {
		size := n / k
		if foldIdx < n%k {
			size++
		}
		end := start + size
		folds[foldIdx] = Fold{
			Train: slices.Concat(perm[:start], perm[end:]),
			Test:  slices.Clone(perm[start:end]),
		}
		start = end
	}
	return folds, nil
}
