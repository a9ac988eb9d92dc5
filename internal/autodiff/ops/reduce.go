package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// SumOp spreads the scalar gradient over every input element.
type SumOp struct{ node }

func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{edges(output, x)}
}

func (op *SumOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expand(g, op.inputs[0].Shape(), backend)}
}

// SumDimOp broadcasts the gradient back along the reduced dimension.
type SumDimOp struct {
	node
	dim int
}

func NewSumDimOp(x *tensor.RawTensor, dim int, output *tensor.RawTensor) *SumDimOp {
	return &SumDimOp{node: edges(output, x), dim: x.Shape().NormalizeDim(dim)}
}

func (op *SumDimOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.inputs[0].Shape()
	kept := backend.Reshape(g, keepDimShape(shape, op.dim))
	return []*tensor.RawTensor{expand(kept, shape, backend)}
}

// MeanDimOp is SumDimOp scaled by 1/n.
type MeanDimOp struct {
	node
	dim int
}

func NewMeanDimOp(x *tensor.RawTensor, dim int, output *tensor.RawTensor) *MeanDimOp {
	return &MeanDimOp{node: edges(output, x), dim: x.Shape().NormalizeDim(dim)}
}

func (op *MeanDimOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.inputs[0].Shape()
	scaled := backend.MulScalar(g, 1/float64(shape[op.dim]))
	kept := backend.Reshape(scaled, keepDimShape(shape, op.dim))
	return []*tensor.RawTensor{expand(kept, shape, backend)}
}
