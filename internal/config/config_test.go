package config

import (
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/parameters"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device: simplego
batch_size: 4
num_epochs: 3
lr_generator: 0.001
lr_decay_step: 2
lr_decay_gamma: 0.1
image_size: 64
discriminator: global
`), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "simplego", cfg.Device)
	require.Equal(t, 4, cfg.BatchSize)
	require.Equal(t, 3, cfg.NumEpochs)
	require.Equal(t, 0.001, cfg.LRGenerator)
	require.Equal(t, 2e-4, cfg.LRDiscriminator, "fields not in the file keep their defaults")
	require.Equal(t, 2, cfg.LRDecayStep)
	require.Equal(t, 0.1, cfg.LRDecayGamma)
	require.Equal(t, 64, cfg.ImageSize)
	require.Equal(t, model.DiscriminatorGlobal, cfg.Discriminator)

	require.NoError(t, os.WriteFile(path, []byte("image_size: 30\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOverride(t *testing.T) {
	cfg := Default()
	params := parameters.NewFromConfigString("batch_size=2,beta1=0.9,seed=7,log_to_file=false,discriminator=global,filters=8")
	require.NoError(t, cfg.Override(params))
	require.Equal(t, 2, cfg.BatchSize)
	require.Equal(t, 0.9, cfg.Beta1)
	require.Equal(t, int64(7), cfg.Seed)
	require.False(t, cfg.LogToFile)
	require.Equal(t, model.DiscriminatorGlobal, cfg.Discriminator)
	require.Equal(t, []string{"filters"}, parameters.Keys(params), "unknown keys are left in params")

	require.Error(t, Default().Override(parameters.NewFromConfigString("discriminator=crf")))
	require.Error(t, Default().Override(parameters.NewFromConfigString("lr_decay_gamma=0")))
	require.Error(t, Default().Override(parameters.NewFromConfigString("batch_size=x")))
}
