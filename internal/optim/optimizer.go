// Package optim updates model parameters from the gradients accumulated on
// them by a backward pass.
//
//   - Optimizer: the Step / ZeroGrad / GetLR contract the trainer drives
//   - SGD: stochastic gradient descent with optional momentum
//   - Adam: adaptive moment estimation
//   - ManualStep: the bare p -= lr * grad rule, written out by hand
//
// A training step is always: zero the gradients, forward, backward, step.
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.003})
//	for batch := range loader.Batches(backend) {
//	    opt.ZeroGrad()
//	    tape.Clear()
//	    loss := lossFn.Forward(model.Forward(batch.Images), batch.Labels)
//	    nn.CollectGrads(model.Parameters(), autodiff.Backward(loss, backend))
//	    opt.Step()
//	}
package optim

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// Optimizer is implemented by every update rule.
type Optimizer interface {
	// Step applies one update using each parameter's accumulated gradient.
	// Parameters without a gradient are left alone.
	Step()

	// ZeroGrad clears the gradients of every managed parameter.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Kind names an optimizer in configuration.
type Kind string

const (
	KindSGD    Kind = "sgd"
	KindAdam   Kind = "adam"
	KindManual Kind = "manual"
)

// ParseKind validates an optimizer name; the empty string means sgd.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSGD, KindAdam, KindManual:
		return k, nil
	case "":
		return KindSGD, nil
	}
	return "", fmt.Errorf("unknown optimizer %q (want sgd, adam or manual)", s)
}

// New builds the optimizer named by kind. Momentum only applies to sgd.
func New[B tensor.Backend](kind Kind, params []*nn.Parameter[B], lr, momentum float32) (Optimizer, error) {
	switch kind {
	case KindSGD:
		return NewSGD(params, SGDConfig{LR: lr, Momentum: momentum}), nil
	case KindAdam:
		return NewAdam(params, AdamConfig{LR: lr}), nil
	case KindManual:
		return NewManual(params, lr), nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", kind)
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}
