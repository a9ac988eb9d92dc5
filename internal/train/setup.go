package train

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/config"
	"github.com/born-ml/digitgrad/internal/data"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// LoadData reads the split selected by train from the configured source
// and normalizes it. The synthetic source draws a different stream for the
// test split.
func LoadData(dc config.DataConfig, train bool, seed int64) (*data.Dataset, error) {
	var (
		ds  *data.Dataset
		err error
	)
	switch dc.Source {
	case config.SourceIDX:
		ds, err = data.LoadIDX(dc.Dir, train, dc.Limit)
	case config.SourceCSV:
		ds, err = data.LoadCSV(dc.CSVPath, dc.Limit)
	case config.SourceSynthetic:
		if !train {
			seed = ^seed
		}
		ds = data.Synthetic(dc.Synthetic, rand.New(rand.NewSource(seed))).Subset(dc.Limit)
	default:
		err = fmt.Errorf("unknown data source %q", dc.Source)
	}
	if err != nil {
		return nil, err
	}
	if err := ds.Normalize(dc.Mean, dc.Std); err != nil {
		return nil, err
	}
	return ds, nil
}

// ClassifierConfig derives the network layout from cfg for images with the
// given number of features.
func ClassifierConfig(cfg *config.Config, features int) (nn.ClassifierConfig, error) {
	init, err := nn.ParseInit(cfg.Model.Init)
	if err != nil {
		return nn.ClassifierConfig{}, err
	}
	loss, err := nn.ParseLoss(cfg.Training.Loss)
	if err != nil {
		return nn.ClassifierConfig{}, err
	}
	return nn.ClassifierConfig{
		Inputs:     features,
		Hidden:     append([]int(nil), cfg.Model.Hidden...),
		Classes:    data.NumClasses,
		Init:       init,
		LogSoftmax: loss.WantsLogSoftmax(),
	}, nil
}

// NewLoader wraps ds with the batching settings of cfg. Evaluation loaders
// never shuffle or drop samples.
func NewLoader[B tensor.Backend](ds *data.Dataset, cfg *config.Config, eval bool, backend B) (*data.Loader[B], error) {
	lc := data.LoaderConfig{
		BatchSize: cfg.Training.BatchSize,
		Shuffle:   cfg.Training.Shuffle,
		DropLast:  cfg.Training.DropLast,
		Seed:      cfg.Training.Seed,
	}
	if eval {
		lc.Shuffle, lc.DropLast = false, false
	}
	return data.NewLoader(ds, lc, backend)
}
