// Package generics implements generic data structure functions missing from the stdlib.
package generics

import (
	"cmp"
	"golang.org/x/exp/constraints"
	"iter"
	"maps"
	"slices"
)

// SliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func SliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// SortedKeys returns an iterator over the sorted keys of the given map.
//
// It extracts the keys, sort them and then iterate over, so it's convenient but not fast.
func SortedKeys[M interface{ ~map[K]V }, K cmp.Ordered, V any](m M) iter.Seq[K] {
	sortedKeys := slices.Collect(maps.Keys(m))
	slices.Sort(sortedKeys)
	return slices.Values(sortedKeys)
}

// Number is any integer or float type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mean returns the sum of values divided by n, as a float64.
// It returns 0 if n is 0.
func Mean[T Number](sum T, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// RunningMean holds a sum and a count of values, and returns their mean.
// The zero value is ready to use.
type RunningMean[T Number] struct {
	Sum   T
	Count int
}

// Add value to the running mean.
func (r *RunningMean[T]) Add(value T) {
	r.Sum += value
	r.Count++
}

// Mean of the values added so far, or 0 if none.
func (r *RunningMean[T]) Mean() float64 {
	return Mean(r.Sum, r.Count)
}

// MovingAverage is an exponential moving average where the weight of the past values is 1-1/count,
// capped at MaxWeight. So the first values are averaged uniformly, and later ones decay exponentially.
// The zero value does no smoothing.
type MovingAverage struct {
	MaxWeight float64
	Value     float64
	count     int
}

// Add value and return the updated average.
func (m *MovingAverage) Add(value float64) float64 {
	m.count++
	weight := min(1.0-1.0/float64(m.count), m.MaxWeight)
	m.Value = m.Value*weight + value*(1.0-weight)
	return m.Value
}
