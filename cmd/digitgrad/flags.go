package main

import (
	"flag"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/config"
	"github.com/born-ml/digitgrad/internal/parallel"
)

type backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// runFlags are shared by the commands that read data.
type runFlags struct {
	configPath string
	workers    int
	o          config.Overrides
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to YAML config (defaults apply when empty)")
	fs.IntVar(&f.workers, "workers", 0, "CPU worker goroutines (0 = physical cores)")
	fs.StringVar(&f.o.Source, "source", "", "Data source: idx, csv or synthetic")
	fs.StringVar(&f.o.DataDir, "data-dir", "", "Directory holding the IDX files")
	fs.StringVar(&f.o.CSVPath, "csv", "", "Kaggle-style CSV file")
	fs.IntVar(&f.o.Limit, "limit", 0, "Load at most N samples")
	fs.IntVar(&f.o.BatchSize, "batch-size", 0, "Batch size")
	fs.Int64Var(&f.o.Seed, "seed", 0, "PRNG seed")
}

func (f *runFlags) config() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyOverrides(f.o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *runFlags) backend() backend {
	par := parallel.DefaultConfig()
	if f.workers > 0 {
		par.NumWorkers = f.workers
	}
	return autodiff.New(cpu.NewWithConfig(par))
}
