package nn

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Parameter is a trainable tensor. Its gradient accumulates across backward
// passes until ZeroGrad, matching the behaviour the training loop relies on:
// zero, forward, backward, step.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter wraps an initialized tensor. The shape is fixed from here on.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the live weights. Optimizers write into its buffer.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// Grad returns the accumulated gradient, or nil before the first backward
// pass after ZeroGrad.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// AccumulateGrad adds g to the stored gradient. The first call copies g so
// the parameter never aliases a tape-owned buffer.
func (p *Parameter[B]) AccumulateGrad(g *tensor.RawTensor) {
	if !g.Shape().Equal(p.tensor.Shape()) {
		panic(fmt.Sprintf("parameter %s: gradient shape %v does not match %v", p.name, g.Shape(), p.tensor.Shape()))
	}
	if p.grad == nil {
		p.grad = tensor.New[float32](g.Copy(), p.tensor.Backend())
		return
	}
	dst := p.grad.Data()
	for i, v := range g.AsFloat32() {
		dst[i] += v
	}
}

// ZeroGrad drops the accumulated gradient.
func (p *Parameter[B]) ZeroGrad() { p.grad = nil }

func (p *Parameter[B]) String() string {
	return fmt.Sprintf("Parameter(%s, %v)", p.name, []int(p.tensor.Shape()))
}
