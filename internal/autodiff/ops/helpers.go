package ops

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// reduceBroadcast sums a gradient back down to the shape of an input that
// was broadcast in the forward pass.
//
//	forward:  h[64,10] + bias[10] -> y[64,10]
//	backward: grad_y[64,10] -> grad_bias[10] (sum over dim 0)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		// Shared handle: the caller may hand the same gradient to two inputs.
		return grad.Clone()
	}
	out := grad
	for len(out.Shape()) > len(target) {
		out = backend.SumDim(out, 0, false)
	}
	for d, size := range target {
		if size == 1 && out.Shape()[d] != 1 {
			out = backend.SumDim(out, d, true)
		}
	}
	if !out.Shape().Equal(target) {
		out = backend.Reshape(out, target)
	}
	return out
}

// expand broadcasts grad up to shape.
func expand(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad.Clone()
	}
	return backend.Add(tensor.MustRaw(shape, grad.DType(), grad.Device()), grad)
}

// keepDimShape is shape with dim set to 1.
func keepDimShape(shape tensor.Shape, dim int) tensor.Shape {
	out := shape.Clone()
	out[dim] = 1
	return out
}

func scalarValue(x *tensor.RawTensor) float64 {
	if x.NumElements() != 1 {
		panic(fmt.Sprintf("expected a single-element gradient, got shape %v", x.Shape()))
	}
	return x.Float64s()[0]
}

func requireFloat(op string, x *tensor.RawTensor) {
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("%s: gradient needs float32/float64, got %s", op, x.DType()))
	}
}
