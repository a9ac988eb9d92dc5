package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Linear is a fully connected layer: y = x @ Wᵀ + b with
// x [batch, in], W [out, in], b [out].
type Linear[B tensor.Backend] struct {
	in, out int
	weight  *Parameter[B]
	bias    *Parameter[B]
}

// NewLinear builds a layer with Kaiming-uniform weights and biases.
func NewLinear[B tensor.Backend](in, out int, rng *rand.Rand, backend B) *Linear[B] {
	return NewLinearWithInit(in, out, InitKaiming, rng, backend)
}

// NewLinearWithInit builds a layer with the given initialization scheme.
func NewLinearWithInit[B tensor.Backend](in, out int, init Init, rng *rand.Rand, backend B) *Linear[B] {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("linear: invalid size %d -> %d", in, out))
	}
	var w, b *tensor.Tensor[float32, B]
	switch init {
	case InitXavier:
		w = Xavier(in, out, tensor.Shape{out, in}, rng, backend)
		b = tensor.Zeros[float32](tensor.Shape{out}, backend)
	default:
		w = KaimingUniform(in, tensor.Shape{out, in}, rng, backend)
		b = KaimingUniform(in, tensor.Shape{out}, rng, backend)
	}
	return &Linear[B]{
		in:     in,
		out:    out,
		weight: NewParameter("weight", w),
		bias:   NewParameter("bias", b),
	}
}

// Forward expects [batch, in] and returns [batch, out]. The bias broadcasts
// across the batch.
func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != l.in {
		panic(fmt.Sprintf("linear: expected [batch, %d] input, got %v", l.in, shape))
	}
	return x.MatMul(l.weight.Tensor().T()).Add(l.bias.Tensor())
}

func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }
func (l *Linear[B]) Bias() *Parameter[B] { return l.bias }
func (l *Linear[B]) InFeatures() int { return l.in }
func (l *Linear[B]) OutFeatures() int { return l.out }

func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.in, l.out)
}
