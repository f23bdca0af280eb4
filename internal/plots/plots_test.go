package plots

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.png")
	require.NoError(t, Bars(path, "Results", "Score", []string{"dice", "f2"}, []Series{
		{Name: "a", Values: []float64{0.5, 0.7}},
		{Name: "b", Values: []float64{0.6, 0.2}},
	}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.Error(t, Bars(path, "", "", []string{"dice"}, []Series{{Name: "a", Values: []float64{1, 2}}}))
}

func TestLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.svg")
	require.NoError(t, Lines(path, "Losses", "epoch", "loss", []float64{1, 2, 3}, []Series{
		{Name: "train", Values: []float64{1, 0.5, 0.25}},
		{Name: "val", Values: []float64{1.2, 0.7, 0.6}},
	}))
	assert.FileExists(t, path)

	require.Error(t, Lines(path, "", "", "", []float64{1, 2}, []Series{{Name: "a", Values: []float64{1}}}))
}
