package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// ClassifierConfig sizes a feed-forward classifier.
type ClassifierConfig struct {
	Inputs  int   // flattened image size, 784 for MNIST
	Hidden  []int // width of each hidden layer
	Classes int
	Init    Init
	// LogSoftmax appends a LogSoftmax(1) head so the model emits
	// log-probabilities for NLLLoss. Without it the model emits raw scores
	// for CrossEntropyLoss.
	LogSoftmax bool
}

// DefaultClassifierConfig is 784 -> 128 -> ReLU -> 64 -> ReLU -> 10 -> LogSoftmax.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{Inputs: 784, Hidden: []int{128, 64}, Classes: 10, LogSoftmax: true}
}

// NewClassifier builds Flatten, then Linear+ReLU per hidden layer, then the
// output Linear and the optional LogSoftmax head.
func NewClassifier[B tensor.Backend](cfg ClassifierConfig, rng *rand.Rand, backend B) (*Sequential[B], error) {
	if cfg.Inputs <= 0 || cfg.Classes <= 1 {
		return nil, fmt.Errorf("classifier: need positive inputs and at least two classes, got %d -> %d", cfg.Inputs, cfg.Classes)
	}
	modules := []Module[B]{NewFlatten[B]()}
	width := cfg.Inputs
	for i, h := range cfg.Hidden {
		if h <= 0 {
			return nil, fmt.Errorf("classifier: hidden layer %d has width %d", i, h)
		}
		modules = append(modules, NewLinearWithInit(width, h, cfg.Init, rng, backend), NewReLU[B]())
		width = h
	}
	modules = append(modules, NewLinearWithInit(width, cfg.Classes, cfg.Init, rng, backend))
	if cfg.LogSoftmax {
		modules = append(modules, NewLogSoftmax[B](1))
	}
	return NewSequential(modules...), nil
}
