package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// LogSoftmaxOp records y = x - logsumexp(x) along dim.
//
// With p = exp(y), the Jacobian-vector product is
//
//	dL/dx = g - p * sum(g, dim)
type LogSoftmaxOp struct {
	node
	dim int
}

func NewLogSoftmaxOp(x *tensor.RawTensor, dim int, output *tensor.RawTensor) *LogSoftmaxOp {
	return &LogSoftmaxOp{node: edges(output, x), dim: x.Shape().NormalizeDim(dim)}
}

func (op *LogSoftmaxOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	total := backend.SumDim(g, op.dim, true)
	p := backend.Exp(op.output)
	return []*tensor.RawTensor{backend.Sub(g, backend.Mul(p, total))}
}
