package autodiff

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	Tape() *GradientTape
}

// Backward differentiates t with respect to everything recorded on the
// backend's tape, seeding dL/dt with ones (so a scalar t yields dt/dx).
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) Gradients {
	tape := backend.Tape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (was the tape started?)")
	}
	if !t.DType().IsFloat() {
		panic(fmt.Sprintf("backward: cannot differentiate %s tensor", t.DType()))
	}
	return tape.BackwardFrom(t.Raw(), tensor.OnesLike(t.Raw()), backend)
}

// Grad returns the gradient for x as a tensor on x's backend, or nil when
// no gradient reached it.
func Grad[T tensor.DType, B tensor.Backend](grads Gradients, x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	g, ok := grads[x.Raw()]
	if !ok {
		return nil
	}
	return tensor.New[T](g, x.Backend())
}
