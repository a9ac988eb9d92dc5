package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// ExpOp: d(eˣ)/dx = eˣ, which is the recorded output.
type ExpOp struct{ node }

func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{edges(output, x)}
}

func (op *ExpOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(g, op.output)}
}

// LogOp: d(ln x)/dx = 1/x.
type LogOp struct{ node }

func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{edges(output, x)}
}

func (op *LogOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(g, op.inputs[0])}
}

// ReLUOp passes the gradient where the input was positive and zeroes it
// elsewhere, including at exactly zero.
type ReLUOp struct{ node }

func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{edges(output, x)}
}

func (op *ReLUOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	requireFloat("relu", x)
	out := tensor.ZerosLike(g)
	switch g.DType() {
	case tensor.Float32:
		reluMask(out.AsFloat32(), g.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		reluMask(out.AsFloat64(), g.AsFloat64(), x.AsFloat64())
	}
	return []*tensor.RawTensor{out}
}

func reluMask[T ~float32 | ~float64](dst, g, x []T) {
	for i, v := range x {
		if v > 0 {
			dst[i] = g[i]
		}
	}
}
