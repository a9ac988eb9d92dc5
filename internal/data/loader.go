package data

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	// DropLast skips a final batch smaller than BatchSize.
	DropLast bool
	Seed     int64
}

// Batch is one mini-batch. Images are [Size, 1, Rows, Cols] and Labels
// are [Size].
type Batch[B tensor.Backend] struct {
	Index  int
	Images *tensor.Tensor[float32, B]
	Labels *tensor.Tensor[int32, B]
	Size   int
}

// Loader cuts a dataset into fresh batch tensors on every pass.
type Loader[B tensor.Backend] struct {
	ds      *Dataset
	cfg     LoaderConfig
	backend B
	rng     *rand.Rand
	order   []int
}

func NewLoader[B tensor.Backend](ds *Dataset, cfg LoaderConfig, backend B) (*Loader[B], error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be positive, got %d", cfg.BatchSize)
	}
	if ds.Len() == 0 {
		return nil, errors.New("loader: empty dataset")
	}
	if cfg.DropLast && ds.Len() < cfg.BatchSize {
		return nil, fmt.Errorf("loader: %d samples cannot fill one batch of %d with drop_last", ds.Len(), cfg.BatchSize)
	}
	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	return &Loader[B]{
		ds:      ds,
		cfg:     cfg,
		backend: backend,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		order:   order,
	}, nil
}

func (l *Loader[B]) Dataset() *Dataset { return l.ds }

// NumBatches is the number of batches one pass yields.
func (l *Loader[B]) NumBatches() int {
	n := l.ds.Len()
	if l.cfg.DropLast {
		return n / l.cfg.BatchSize
	}
	return (n + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Batches starts a new pass, reshuffling first when Shuffle is set. The
// tensors of each batch are newly allocated, so the consumer may keep or
// mutate them.
func (l *Loader[B]) Batches() iter.Seq[*Batch[B]] {
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	order := append([]int(nil), l.order...)
	return func(yield func(*Batch[B]) bool) {
		for i := 0; i < l.NumBatches(); i++ {
			start := i * l.cfg.BatchSize
			end := min(start+l.cfg.BatchSize, len(order))
			if !yield(l.batch(i, order[start:end])) {
				return
			}
		}
	}
}

func (l *Loader[B]) batch(index int, idx []int) *Batch[B] {
	n, features := len(idx), l.ds.Features()
	images := tensor.MustRaw(tensor.Shape{n, 1, l.ds.Rows, l.ds.Cols}, tensor.Float32, l.backend.Device())
	labels := tensor.MustRaw(tensor.Shape{n}, tensor.Int32, l.backend.Device())
	px, lb := images.AsFloat32(), labels.AsInt32()
	for j, k := range idx {
		copy(px[j*features:(j+1)*features], l.ds.Images[k])
		lb[j] = l.ds.Labels[k]
	}
	return &Batch[B]{
		Index:  index,
		Images: tensor.New[float32](images, l.backend),
		Labels: tensor.New[int32](labels, l.backend),
		Size:   n,
	}
}
