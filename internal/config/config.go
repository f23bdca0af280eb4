// Package config defines the training configuration: hyperparameters of the adversarial training,
// paths and the device (GoMLX backend) to use.
//
// A Config is loaded from a YAML file (Load), and individual fields can be overridden with a
// "key=value,..." string (see parameters.NewFromConfigString and Config.Override), using the same
// keys as the YAML file.
package config

import (
	"github.com/janpfeifer/segan/internal/model"
	"github.com/janpfeifer/segan/internal/parameters"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
)

// Config for a training run.
type Config struct {
	// Device is the GoMLX backend configuration, e.g. "xla:cuda", "xla:cpu" or "simplego".
	// If empty, GoMLX picks its default backend.
	Device string `yaml:"device"`

	BatchSize int `yaml:"batch_size"`
	NumEpochs int `yaml:"num_epochs"`

	// Adam optimizers, one for each sub-network.
	LRGenerator     float64 `yaml:"lr_generator"`
	LRDiscriminator float64 `yaml:"lr_discriminator"`
	Beta1           float64 `yaml:"beta1"`
	Beta2           float64 `yaml:"beta2"`

	// Step decay of the learning rates: multiplied by LRDecayGamma every LRDecayStep epochs.
	LRDecayStep  int     `yaml:"lr_decay_step"`
	LRDecayGamma float64 `yaml:"lr_decay_gamma"`

	// CheckpointDir is where the per-run log directories are created.
	CheckpointDir string `yaml:"checkpoint_dir"`

	// ImageSize of the square images and masks fed to the model. Must be a multiple of 8.
	ImageSize int `yaml:"image_size"`

	// Seed for the dataset split, shuffling and the models' initialization.
	Seed int64 `yaml:"seed"`

	// TrainRatio used to split the training data into train/validation.
	TrainRatio float64 `yaml:"train_ratio"`

	// Threshold applied to the generated masks when computing metrics.
	Threshold float64 `yaml:"threshold"`

	// Labels used by the discriminator loss. RealLabel < 1 is one-sided label smoothing.
	RealLabel float64 `yaml:"real_label"`
	FakeLabel float64 `yaml:"fake_label"`

	// Discriminator architecture.
	Discriminator model.DiscriminatorType `yaml:"discriminator"`

	// LogToFile writes a training.log file in the run's log directory, besides logging to stderr.
	LogToFile bool `yaml:"log_to_file"`
}

// Default returns a new configuration with the default values.
func Default() *Config {
	return &Config{
		BatchSize:       16,
		NumEpochs:       100,
		LRGenerator:     2e-4,
		LRDiscriminator: 2e-4,
		Beta1:           0.5,
		Beta2:           0.999,
		LRDecayStep:     30,
		LRDecayGamma:    0.5,
		CheckpointDir:   "checkpoints",
		ImageSize:       256,
		Seed:            42,
		TrainRatio:      0.8,
		Threshold:       0.5,
		RealLabel:       0.9,
		FakeLabel:       0.0,
		Discriminator:   model.DiscriminatorPatch,
		LogToFile:       true,
	}
}

// Load configuration from the YAML file in path. Fields not present in the file keep their default values.
// If path is empty, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read training configuration from %q", path)
	}
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse training configuration in %q", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid training configuration in %q", path)
	}
	return cfg, nil
}

// Override configuration fields with the values in params. The keys are the same as the YAML ones.
//
// Recognized keys are popped from params, the remaining ones are left for other users (e.g. the model
// hyperparameters).
func (cfg *Config) Override(params parameters.Params) error {
	var err error
	setString := func(key string, field *string) {
		if err == nil {
			*field, err = parameters.PopParamOr(params, key, *field)
		}
	}
	setInt := func(key string, field *int) {
		if err == nil {
			*field, err = parameters.PopParamOr(params, key, *field)
		}
	}
	setFloat := func(key string, field *float64) {
		if err == nil {
			*field, err = parameters.PopParamOr(params, key, *field)
		}
	}
	setString("device", &cfg.Device)
	setInt("batch_size", &cfg.BatchSize)
	setInt("num_epochs", &cfg.NumEpochs)
	setFloat("lr_generator", &cfg.LRGenerator)
	setFloat("lr_discriminator", &cfg.LRDiscriminator)
	setFloat("beta1", &cfg.Beta1)
	setFloat("beta2", &cfg.Beta2)
	setInt("lr_decay_step", &cfg.LRDecayStep)
	setFloat("lr_decay_gamma", &cfg.LRDecayGamma)
	setString("checkpoint_dir", &cfg.CheckpointDir)
	setInt("image_size", &cfg.ImageSize)
	setFloat("train_ratio", &cfg.TrainRatio)
	setFloat("threshold", &cfg.Threshold)
	setFloat("real_label", &cfg.RealLabel)
	setFloat("fake_label", &cfg.FakeLabel)
	if err != nil {
		return err
	}

	seed, err := parameters.PopParamOr(params, "seed", int(cfg.Seed))
	if err != nil {
		return err
	}
	cfg.Seed = int64(seed)
	cfg.LogToFile, err = parameters.PopParamOr(params, "log_to_file", cfg.LogToFile)
	if err != nil {
		return err
	}
	discName, _ := parameters.PopParamOr(params, "discriminator", cfg.Discriminator.String())
	cfg.Discriminator, err = model.DiscriminatorTypeString(discName)
	if err != nil {
		return errors.Wrapf(err, "invalid discriminator=%q, valid values are %s", discName,
			strings.Join(model.DiscriminatorTypeStrings(), ", "))
	}
	return cfg.Validate()
}

// Validate checks that the configuration values are within their valid ranges.
func (cfg *Config) Validate() error {
	switch {
	case cfg.BatchSize <= 0:
		return errors.Errorf("batch_size must be > 0, got %d", cfg.BatchSize)
	case cfg.NumEpochs <= 0:
		return errors.Errorf("num_epochs must be > 0, got %d", cfg.NumEpochs)
	case cfg.LRGenerator <= 0 || cfg.LRDiscriminator <= 0:
		return errors.Errorf("learning rates must be > 0, got lr_generator=%g, lr_discriminator=%g",
			cfg.LRGenerator, cfg.LRDiscriminator)
	case cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1:
		return errors.Errorf("Adam betas must be in [0, 1), got beta1=%g, beta2=%g", cfg.Beta1, cfg.Beta2)
	case cfg.LRDecayStep <= 0:
		return errors.Errorf("lr_decay_step must be > 0, got %d", cfg.LRDecayStep)
	case cfg.LRDecayGamma <= 0 || cfg.LRDecayGamma > 1:
		return errors.Errorf("lr_decay_gamma must be in (0, 1], got %g", cfg.LRDecayGamma)
	case cfg.ImageSize <= 0 || cfg.ImageSize%8 != 0:
		return errors.Errorf("image_size must be a positive multiple of 8, got %d", cfg.ImageSize)
	case cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1:
		return errors.Errorf("train_ratio must be in (0, 1), got %g", cfg.TrainRatio)
	case cfg.Threshold <= 0 || cfg.Threshold >= 1:
		return errors.Errorf("threshold must be in (0, 1), got %g", cfg.Threshold)
	case cfg.RealLabel < 0 || cfg.RealLabel > 1 || cfg.FakeLabel < 0 || cfg.FakeLabel > 1:
		return errors.Errorf("discriminator labels must be in [0, 1], got real_label=%g, fake_label=%g",
			cfg.RealLabel, cfg.FakeLabel)
	case !cfg.Discriminator.IsADiscriminatorType():
		return errors.Errorf("invalid discriminator type %s", cfg.Discriminator)
	}
	return nil
}
