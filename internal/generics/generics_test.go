package generics

import (
	"github.com/stretchr/testify/assert"
	"slices"
	"testing"
)

func TestSortedKeys(t *testing.T) {
	m := map[int]string{1: "1", 5: "5", 3: "3"}
	// Since the builtin map iterator in Go is deliberately non-deterministic, we
	// run it a bunch of times to show it is stably sorted.
	want := []int{1, 3, 5}
	for _ = range 100 {
		got := slices.Collect(SortedKeys(m))
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestSliceMap(t *testing.T) {
	got := SliceMap([]int{1, 2, 3}, func(e int) float32 { return float32(e) / 2 })
	assert.Equal(t, []float32{0.5, 1, 1.5}, got)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(float32(10), 0))
	assert.InDelta(t, 2.5, Mean(10, 4), 1e-9)

	var r RunningMean[float64]
	assert.Equal(t, 0.0, r.Mean())
	for _, v := range []float64{1, 2, 3, 6} {
		r.Add(v)
	}
	assert.Equal(t, 4, r.Count)
	assert.InDelta(t, 3.0, r.Mean(), 1e-9)
}

func TestMovingAverage(t *testing.T) {
	ma := MovingAverage{MaxWeight: 0.5}
	assert.Equal(t, 4.0, ma.Add(4))            // weight 0
	assert.InDelta(t, 3.0, ma.Add(2), 1e-9)    // weight 0.5
	assert.InDelta(t, 5.5, ma.Add(8), 1e-9)    // weight capped at 0.5
	noSmoothing := MovingAverage{}
	noSmoothing.Add(1)
	assert.Equal(t, 7.0, noSmoothing.Add(7))
}
