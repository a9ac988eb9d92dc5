package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// AddOp: d(a+b)/da = d(a+b)/db = 1.
type AddOp struct{ node }

func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{edges(output, a, b)}
}

func (op *AddOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(g, op.inputs[0].Shape(), backend),
		reduceBroadcast(g, op.inputs[1].Shape(), backend),
	}
}

// SubOp: d(a-b)/da = 1, d(a-b)/db = -1.
type SubOp struct{ node }

func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{edges(output, a, b)}
}

func (op *SubOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(g, op.inputs[0].Shape(), backend),
		reduceBroadcast(backend.MulScalar(g, -1), op.inputs[1].Shape(), backend),
	}
}

// MulOp: d(a*b)/da = b, d(a*b)/db = a.
type MulOp struct{ node }

func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{edges(output, a, b)}
}

func (op *MulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(g, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(g, a), b.Shape(), backend),
	}
}

// DivOp: d(a/b)/da = 1/b, d(a/b)/db = -a/b².
type DivOp struct{ node }

func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{edges(output, a, b)}
}

func (op *DivOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(g, b)
	// -g * a / b² == -(g/b) * (a/b) == -gradA * output
	gradB := backend.MulScalar(backend.Mul(gradA, op.output), -1)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// MulScalarOp: d(s*x)/dx = s.
type MulScalarOp struct {
	node
	scalar float64
}

func NewMulScalarOp(x *tensor.RawTensor, s float64, output *tensor.RawTensor) *MulScalarOp {
	return &MulScalarOp{node: edges(output, x), scalar: s}
}

func (op *MulScalarOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(g, op.scalar)}
}

// AddScalarOp: d(x+s)/dx = 1.
type AddScalarOp struct{ node }

func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{edges(output, x)}
}

func (op *AddScalarOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{g.Clone()}
}
