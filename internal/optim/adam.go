package optim

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// Adam keeps running averages of the gradient and its square:
//
//	m = b1*m + (1-b1)*g
//	v = b2*v + (1-b2)*g²
//	p -= lr * m̂ / (sqrt(v̂) + eps)
//
// where m̂ and v̂ are bias-corrected by 1-b^t.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int
	m      map[*nn.Parameter[B]][]float32
	v      map[*nn.Parameter[B]][]float32
}

// AdamConfig holds Adam hyperparameters. Zero fields take the usual
// defaults: LR 0.001, Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[B]][]float32),
		v:      make(map[*nn.Parameter[B]][]float32),
	}
}

func (a *Adam[B]) Step() {
	a.t++
	c1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	c2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, p := range a.params {
		g := p.Grad()
		if g == nil {
			continue
		}
		grad := g.Data()
		m, ok := a.m[p]
		if !ok {
			m = make([]float32, len(grad))
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = make([]float32, len(grad))
			a.v[p] = v
		}
		w := p.Tensor().Data()
		for i, gi := range grad {
			m[i] = a.beta1*m[i] + (1-a.beta1)*gi
			v[i] = a.beta2*v[i] + (1-a.beta2)*gi*gi
			w[i] -= a.lr * (m[i] / c1) / (math32.Sqrt(v[i]/c2) + a.eps)
		}
	}
}

func (a *Adam[B]) ZeroGrad() { zeroGrad(a.params) }

func (a *Adam[B]) GetLR() float32 { return a.lr }

func (a *Adam[B]) SetLR(lr float32) { a.lr = lr }

// Timestep is the number of Step calls so far.
func (a *Adam[B]) Timestep() int { return a.t }

// StateDict exports the moment buffers as "m.<param index>" and
// "v.<param index>" and the step count as a one-element int32 "step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	step := tensor.MustRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	step.AsInt32()[0] = int32(a.t)
	state["step"] = step
	for i, p := range a.params {
		for _, buf := range []struct {
			name string
			data map[*nn.Parameter[B]][]float32
		}{{"m", a.m}, {"v", a.v}} {
			src, ok := buf.data[p]
			if !ok {
				continue
			}
			raw := tensor.MustRaw(p.Tensor().Shape(), tensor.Float32, p.Tensor().Device())
			copy(raw.AsFloat32(), src)
			state[fmt.Sprintf("%s.%d", buf.name, i)] = raw
		}
	}
	return state
}

// LoadStateDict restores the moments and step count. Parameters without
// saved moments start from zero on the next step.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	t := 0
	if raw, ok := state["step"]; ok {
		if raw.DType() != tensor.Int32 || raw.Shape().NumElements() != 1 {
			return fmt.Errorf("adam: step is %s%v, want int32[1]", raw.DType(), raw.Shape())
		}
		t = int(raw.AsInt32()[0])
	}
	m := make(map[*nn.Parameter[B]][]float32)
	v := make(map[*nn.Parameter[B]][]float32)
	for i, p := range a.params {
		for _, buf := range []struct {
			name string
			data map[*nn.Parameter[B]][]float32
		}{{"m", m}, {"v", v}} {
			key := fmt.Sprintf("%s.%d", buf.name, i)
			raw, ok := state[key]
			if !ok {
				continue
			}
			if !raw.Shape().Equal(p.Tensor().Shape()) || raw.DType() != tensor.Float32 {
				return fmt.Errorf("adam: %s is %s%v, parameter %s is float32%v",
					key, raw.DType(), raw.Shape(), p.Name(), p.Tensor().Shape())
			}
			buf.data[p] = append([]float32(nil), raw.AsFloat32()...)
		}
	}
	a.t, a.m, a.v = t, m, v
	return nil
}
