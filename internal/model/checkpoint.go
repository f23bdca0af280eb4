package model

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
)

// Sub-directories of a model checkpoint, one per network.
const (
	GeneratorDir     = "generator"
	DiscriminatorDir = "discriminator"
)

// SaveCheckpoint saves both networks (weights, optimizer state and hyperparameters) under dir,
// in the GeneratorDir and DiscriminatorDir sub-directories.
// Saving again to the same dir replaces the previous checkpoint.
func (m *Model) SaveCheckpoint(dir string) error {
	return m.save(dir)
}

// SaveBestCheckpoint saves both networks under dir, like SaveCheckpoint.
// It is used for the best model selected so far, which is the one used for benchmarking.
func (m *Model) SaveBestCheckpoint(dir string) error {
	if err := m.save(dir); err != nil {
		return errors.WithMessage(err, "saving best model")
	}
	return nil
}

func (m *Model) save(dir string) error {
	m.muSave.Lock()
	defer m.muSave.Unlock()
	for _, sub := range []struct {
		name string
		ctx  *context.Context
	}{{GeneratorDir, m.Generator}, {DiscriminatorDir, m.Discriminator}} {
		path := filepath.Join(dir, sub.name)
		handler, found := m.handlers[path]
		if !found {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create checkpoint directory %q", path)
			}
			var err error
			handler, err = checkpoints.Build(sub.ctx).Dir(path).Keep(1).Done()
			if err != nil {
				return errors.WithMessagef(err, "failed to build %s checkpoint in %q", sub.name, path)
			}
			m.handlers[path] = handler
		}
		if err := handler.Save(); err != nil {
			return errors.WithMessagef(err, "failed to save %s checkpoint to %q", sub.name, path)
		}
	}
	return nil
}

// Load both networks from a checkpoint directory previously written by SaveCheckpoint.
// Hyperparameters saved with the checkpoint take precedence over the current ones.
func (m *Model) Load(dir string) error {
	if err := m.LoadGenerator(dir); err != nil {
		return err
	}
	if err := loadInto(m.Discriminator, filepath.Join(dir, DiscriminatorDir)); err != nil {
		return err
	}
	discName := context.GetParamOr(m.Discriminator, ParamDiscriminatorType, m.DiscriminatorType.String())
	discType, err := DiscriminatorTypeString(discName)
	if err != nil {
		return errors.WithMessagef(err, "checkpoint in %q has an invalid discriminator type", dir)
	}
	m.DiscriminatorType = discType
	return nil
}

// LoadGenerator loads only the generator from a checkpoint directory previously written by SaveCheckpoint.
// This is all that is needed for inference (e.g. benchmarking).
func (m *Model) LoadGenerator(dir string) error {
	return loadInto(m.Generator, filepath.Join(dir, GeneratorDir))
}

func loadInto(ctx *context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "checkpoint %q not found", path)
	}
	_, err := checkpoints.Build(ctx).Dir(path).Immediate().Done()
	if err != nil {
		return errors.WithMessagef(err, "failed to load checkpoint from %q", path)
	}
	klog.V(1).Infof("Loaded checkpoint from %s", path)
	return nil
}
