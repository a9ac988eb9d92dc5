package nn

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

func (r *ReLU[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.ReLU()
}

func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

func (r *ReLU[B]) String() string { return "ReLU()" }

// LogSoftmax turns scores into log-probabilities along Dim. A model ending
// in LogSoftmax pairs with NLLLoss; exp of its output gives class
// probabilities.
type LogSoftmax[B tensor.Backend] struct {
	Dim int
}

func NewLogSoftmax[B tensor.Backend](dim int) *LogSoftmax[B] {
	return &LogSoftmax[B]{Dim: dim}
}

func (s *LogSoftmax[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.LogSoftmax(s.Dim)
}

func (s *LogSoftmax[B]) Parameters() []*Parameter[B] { return nil }

func (s *LogSoftmax[B]) String() string { return fmt.Sprintf("LogSoftmax(dim=%d)", s.Dim) }

// Flatten reshapes [batch, ...] to [batch, features], the equivalent of
// images.view(batch, -1).
type Flatten[B tensor.Backend] struct{}

func NewFlatten[B tensor.Backend]() *Flatten[B] { return &Flatten[B]{} }

func (f *Flatten[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(x.Shape()) == 2 {
		return x
	}
	return x.Reshape(x.Shape()[0], -1)
}

func (f *Flatten[B]) Parameters() []*Parameter[B] { return nil }

func (f *Flatten[B]) String() string { return "Flatten()" }
