package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// GatherOp records out = x.gather(dim, index). The backward pass scatters
// each output gradient back onto the element it was read from, adding when
// an element was selected more than once.
type GatherOp struct {
	node
	dim   int
	index *tensor.RawTensor
}

func NewGatherOp(x *tensor.RawTensor, dim int, index, output *tensor.RawTensor) *GatherOp {
	return &GatherOp{node: edges(output, x), dim: x.Shape().NormalizeDim(dim), index: index}
}

func (op *GatherOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	requireFloat("gather", x)
	offsets := tensor.GatherOffsets(x.Shape(), op.index.Shape(), op.dim, op.index.AsInt32())
	out := tensor.ZerosLike(x)
	switch x.DType() {
	case tensor.Float32:
		scatterAdd(out.AsFloat32(), g.AsFloat32(), offsets)
	case tensor.Float64:
		scatterAdd(out.AsFloat64(), g.AsFloat64(), offsets)
	}
	return []*tensor.RawTensor{out}
}

func scatterAdd[T ~float32 | ~float64](dst, g []T, offsets []int) {
	for i, off := range offsets {
		dst[off] += g[i]
	}
}
