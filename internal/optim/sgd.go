package optim

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// SGD is stochastic gradient descent with optional momentum.
//
//	without momentum:  p -= lr * g
//	with momentum:     v = momentum * v + g;  p -= lr * v
//
// Updates are applied directly to the parameter buffers with BLAS level-1
// routines, so they never appear on a gradient tape.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LR       float32 // default 0.01
	Momentum float32 // in [0, 1)
}

func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

func (s *SGD[B]) Step() {
	for _, p := range s.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		grad := g.Data()
		if s.momentum == 0 {
			blas32.Axpy(-s.lr, vec(grad), vec(p.Tensor().Data()))
			continue
		}
		v, ok := s.velocities[p]
		if !ok {
			v = make([]float32, len(grad))
			s.velocities[p] = v
		}
		blas32.Scal(s.momentum, vec(v))
		blas32.Axpy(1, vec(grad), vec(v))
		blas32.Axpy(-s.lr, vec(v), vec(p.Tensor().Data()))
	}
}

func (s *SGD[B]) ZeroGrad() { zeroGrad(s.params) }

func (s *SGD[B]) GetLR() float32 { return s.lr }

// SetLR changes the learning rate for subsequent steps.
func (s *SGD[B]) SetLR(lr float32) { s.lr = lr }

// StateDict exports the momentum buffers as "velocity.<param index>". It is
// empty without momentum or before the first step.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.momentum == 0 {
		return state
	}
	for i, p := range s.params {
		v, ok := s.velocities[p]
		if !ok {
			continue
		}
		raw := tensor.MustRaw(p.Tensor().Shape(), tensor.Float32, p.Tensor().Device())
		copy(raw.AsFloat32(), v)
		state[fmt.Sprintf("velocity.%d", i)] = raw
	}
	return state
}

// LoadStateDict restores momentum buffers. Missing entries start from zero
// on the next step.
func (s *SGD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}
	velocities := make(map[*nn.Parameter[B]][]float32)
	for i, p := range s.params {
		key := fmt.Sprintf("velocity.%d", i)
		raw, ok := state[key]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) || raw.DType() != tensor.Float32 {
			return fmt.Errorf("sgd: %s is %s%v, parameter %s is float32%v",
				key, raw.DType(), raw.Shape(), p.Name(), p.Tensor().Shape())
		}
		velocities[p] = append([]float32(nil), raw.AsFloat32()...)
	}
	s.velocities = velocities
	return nil
}
