package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// MatMulOp records C = A @ B for 2-D operands.
//
//	dL/dA = dL/dC @ Bᵀ
//	dL/dB = Aᵀ @ dL/dC
type MatMulOp struct{ node }

func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{edges(output, a, b)}
}

func (op *MatMulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(g, backend.Transpose(b)),
		backend.MatMul(backend.Transpose(a), g),
	}
}

// TransposeOp routes the gradient through the inverse permutation.
type TransposeOp struct {
	node
	axes []int
}

func NewTransposeOp(x *tensor.RawTensor, axes []int, output *tensor.RawTensor) *TransposeOp {
	if len(axes) == 0 {
		axes = make([]int, len(x.Shape()))
		for i := range axes {
			axes[i] = len(axes) - 1 - i
		}
	}
	return &TransposeOp{node: edges(output, x), axes: append([]int(nil), axes...)}
}

func (op *TransposeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, a := range op.axes {
		inverse[a] = i
	}
	return []*tensor.RawTensor{backend.Transpose(g, inverse...)}
}

// ReshapeOp reshapes the gradient back to the input's shape.
type ReshapeOp struct{ node }

func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{edges(output, x)}
}

func (op *ReshapeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(g, op.inputs[0].Shape())}
}
