package optim

import (
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// ManualStep applies p -= lr * p.grad to every parameter that has a
// gradient, element by element. It is plain SGD without any optimizer
// state and returns the number of parameters it touched.
func ManualStep[B tensor.Backend](params []*nn.Parameter[B], lr float32) int {
	n := 0
	for _, p := range params {
		g := p.Grad()
		if g == nil {
			continue
		}
		w := p.Tensor().Data()
		for i, gi := range g.Data() {
			w[i] -= lr * gi
		}
		n++
	}
	return n
}

// Manual adapts ManualStep to the Optimizer interface.
type Manual[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
}

func NewManual[B tensor.Backend](params []*nn.Parameter[B], lr float32) *Manual[B] {
	return &Manual[B]{params: params, lr: lr}
}

func (m *Manual[B]) Step() { ManualStep(m.params, m.lr) }

func (m *Manual[B]) ZeroGrad() { zeroGrad(m.params) }

func (m *Manual[B]) GetLR() float32 { return m.lr }
