package parameters

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewFromConfigString(t *testing.T) {
	params := NewFromConfigString("batch_size=8, lr_generator=1e-3,log_to_file,device=xla:cpu")
	require.Equal(t, Params{
		"batch_size":   "8",
		"lr_generator": "1e-3",
		"log_to_file":  "",
		"device":       "xla:cpu",
	}, params)
	require.Empty(t, NewFromConfigString("  "))
}

func TestPopParamOr(t *testing.T) {
	params := NewFromConfigString("n=3,x=0.5,flag,off=false,name=unet")
	n, err := PopParamOr(params, "n", 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	x, err := PopParamOr(params, "x", float64(0))
	require.NoError(t, err)
	require.Equal(t, 0.5, x)
	flag, err := PopParamOr(params, "flag", false)
	require.NoError(t, err)
	require.True(t, flag)
	off, err := PopParamOr(params, "off", true)
	require.NoError(t, err)
	require.False(t, off)
	missing, err := PopParamOr(params, "missing", float32(7))
	require.NoError(t, err)
	require.Equal(t, float32(7), missing)
	require.Equal(t, []string{"name"}, Keys(params))

	params = NewFromConfigString("n=three")
	_, err = PopParamOr(params, "n", 1)
	require.Error(t, err)
	require.Contains(t, params, "n", "failed parsing should not pop the parameter")
}

func TestToContext(t *testing.T) {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		"filters":    16,
		"bce_weight": 0.5,
		"activation": "relu",
		"residual":   false,
		"seed":       int64(1),
	})
	params := NewFromConfigString("filters=32,bce_weight=0.25,residual,seed=7,unknown=1")
	require.NoError(t, ToContext(params, ctx))
	require.Equal(t, 32, context.GetParamOr(ctx, "filters", 0))
	require.Equal(t, 0.25, context.GetParamOr(ctx, "bce_weight", 0.0))
	require.Equal(t, "relu", context.GetParamOr(ctx, "activation", ""))
	require.True(t, context.GetParamOr(ctx, "residual", false))
	require.Equal(t, int64(7), context.GetParamOr(ctx, "seed", int64(0)))
	require.Equal(t, []string{"unknown"}, Keys(params))

	params = NewFromConfigString("filters=many")
	require.Error(t, ToContext(params, ctx))
}
