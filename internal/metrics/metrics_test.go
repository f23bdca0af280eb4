package metrics

import (
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestSegmentation(t *testing.T) {
	s := NewSegmentation(0.5)
	// tp=2, fp=1, fn=1, tn=4
	prediction := []float32{0.9, 0.6, 0.7, 0.1, 0.2, 0.0, 0.4, 0.3}
	target := []float32{1, 1, 0, 1, 0, 0, 0, 0}
	s.UpdateFlat(prediction, target)
	got := s.Compute()
	assert.InDelta(t, 2.0/4, got["mean_iou"], 1e-6)
	assert.InDelta(t, 2.0/3, got["recall"], 1e-6)
	assert.InDelta(t, 2.0/3, got["precision"], 1e-6)
	assert.InDelta(t, 6.0/8, got["accuracy"], 1e-6)
	assert.InDelta(t, 4.0/6, got["dice"], 1e-6)
	assert.InDelta(t, 2.0/3, got["f2"], 1e-6)
	assert.Len(t, got, len(Names))

	s.Reset()
	s.UpdateFlat([]float32{0, 0}, []float32{0, 0})
	got = s.Compute()
	assert.Equal(t, 0.0, got["mean_iou"], "empty masks must not yield NaN")
	assert.InDelta(t, 1.0, got["accuracy"], 1e-6)
}

func TestUpdate(t *testing.T) {
	s := NewSegmentation(0.5)
	prediction := tensors.FromValue([][]float32{{0.8, 0.2}})
	target := tensors.FromValue([][]float32{{1, 1}})
	require.NoError(t, s.Update(prediction, target))
	assert.InDelta(t, 0.5, s.Compute()["recall"], 1e-6)

	require.Error(t, s.Update(prediction, tensors.FromValue([]float32{1, 1})))
	require.Error(t, s.Update(prediction, tensors.FromValue([][]int32{{1, 1}})))
}

func TestAverager(t *testing.T) {
	a := NewAverager()
	a.Add(map[string]float64{"dice": 0.5, "f2": 1})
	a.Add(map[string]float64{"dice": 1.0, "f2": 0})
	assert.Equal(t, map[string]float64{"dice": 0.75, "f2": 0.5}, a.Means())
}
