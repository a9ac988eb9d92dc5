// Package config holds the knobs of a training run, read from YAML and
// adjusted by command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/optim"
)

// Data sources.
const (
	SourceIDX       = "idx"
	SourceCSV       = "csv"
	SourceSynthetic = "synthetic"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
}

type DataConfig struct {
	Source   string  `yaml:"source"`
	Dir      string  `yaml:"dir"`
	CSVPath  string  `yaml:"csv_path"`
	Limit    int     `yaml:"limit"`
	ValRatio float64 `yaml:"val_ratio"`
	Mean     float32 `yaml:"mean"`
	Std      float32 `yaml:"std"`
	// Synthetic is the sample count for the synthetic source.
	Synthetic int `yaml:"synthetic_samples"`
}

type ModelConfig struct {
	Hidden []int  `yaml:"hidden"`
	Init   string `yaml:"init"`
}

type TrainingConfig struct {
	Loss       string  `yaml:"loss"`
	Optimizer  string  `yaml:"optimizer"`
	LR         float32 `yaml:"lr"`
	Momentum   float32 `yaml:"momentum"`
	Epochs     int     `yaml:"epochs"`
	BatchSize  int     `yaml:"batch_size"`
	Shuffle    bool    `yaml:"shuffle"`
	DropLast   bool    `yaml:"drop_last"`
	Seed       int64   `yaml:"seed"`
	LogEvery   int     `yaml:"log_every"`
	Checkpoint string  `yaml:"checkpoint"`
}

// Overrides captures CLI supplied values. Zero values leave the config
// untouched.
type Overrides struct {
	Source     string
	DataDir    string
	CSVPath    string
	Limit      int
	Loss       string
	Optimizer  string
	LR         float64
	Momentum   float64
	Epochs     int
	BatchSize  int
	Seed       int64
	LogEvery   int
	Checkpoint string
}

// Default mirrors the classic MNIST notebook: 784-128-64-10, SGD at
// lr 0.003, five epochs of shuffled batches of 64, inputs normalized
// with mean 0.5 and std 0.5.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:    SourceIDX,
			Dir:       "data/mnist",
			ValRatio:  0,
			Mean:      0.5,
			Std:       0.5,
			Synthetic: 2000,
		},
		Model: ModelConfig{
			Hidden: []int{128, 64},
			Init:   "kaiming",
		},
		Training: TrainingConfig{
			Loss:      string(nn.LossNLL),
			Optimizer: string(optim.KindSGD),
			LR:        0.003,
			Epochs:    5,
			BatchSize: 64,
			Shuffle:   true,
			Seed:      1,
			LogEvery:  100,
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are an error. An empty
// document yields the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Source != "" {
		c.Data.Source = o.Source
	}
	if o.DataDir != "" {
		c.Data.Dir = o.DataDir
	}
	if o.CSVPath != "" {
		c.Data.CSVPath = o.CSVPath
	}
	if o.Limit > 0 {
		c.Data.Limit = o.Limit
	}
	if o.Loss != "" {
		c.Training.Loss = o.Loss
	}
	if o.Optimizer != "" {
		c.Training.Optimizer = o.Optimizer
	}
	if o.LR > 0 {
		c.Training.LR = float32(o.LR)
	}
	if o.Momentum > 0 {
		c.Training.Momentum = float32(o.Momentum)
	}
	if o.Epochs > 0 {
		c.Training.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.Training.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Training.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.Training.LogEvery = o.LogEvery
	}
	if o.Checkpoint != "" {
		c.Training.Checkpoint = o.Checkpoint
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Data.Source {
	case SourceIDX:
		if c.Data.Dir == "" {
			return errors.New("data.dir must be set for the idx source")
		}
	case SourceCSV:
		if c.Data.CSVPath == "" {
			return errors.New("data.csv_path must be set for the csv source")
		}
	case SourceSynthetic:
		if c.Data.Synthetic <= 0 {
			return fmt.Errorf("data.synthetic_samples must be > 0 (got %d)", c.Data.Synthetic)
		}
	default:
		return fmt.Errorf("data.source must be idx, csv or synthetic (got %q)", c.Data.Source)
	}
	if c.Data.ValRatio < 0 || c.Data.ValRatio >= 1 {
		return fmt.Errorf("data.val_ratio must be in [0, 1) (got %v)", c.Data.ValRatio)
	}
	if c.Data.Std <= 0 {
		return fmt.Errorf("data.std must be > 0 (got %v)", c.Data.Std)
	}
	if len(c.Model.Hidden) == 0 {
		return errors.New("model.hidden must list at least one layer")
	}
	for i, h := range c.Model.Hidden {
		if h <= 0 {
			return fmt.Errorf("model.hidden[%d] must be > 0 (got %d)", i, h)
		}
	}
	if _, err := nn.ParseInit(c.Model.Init); err != nil {
		return fmt.Errorf("model.init: %w", err)
	}
	if _, err := nn.ParseLoss(c.Training.Loss); err != nil {
		return fmt.Errorf("training.loss: %w", err)
	}
	if _, err := optim.ParseKind(c.Training.Optimizer); err != nil {
		return fmt.Errorf("training.optimizer: %w", err)
	}
	if c.Training.LR <= 0 {
		return fmt.Errorf("training.lr must be > 0 (got %v)", c.Training.LR)
	}
	if c.Training.Momentum < 0 || c.Training.Momentum >= 1 {
		return fmt.Errorf("training.momentum must be in [0, 1) (got %v)", c.Training.Momentum)
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("training.epochs must be > 0 (got %d)", c.Training.Epochs)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size must be > 0 (got %d)", c.Training.BatchSize)
	}
	if c.Training.LogEvery <= 0 {
		c.Training.LogEvery = 100
	}
	return nil
}

// YAML renders the config, for logging the effective settings.
func (c *Config) YAML() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# marshal config: %v\n", err)
	}
	return string(out)
}
