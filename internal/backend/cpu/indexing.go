package cpu

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Gather selects along dim: out[i][j] = x[i][index[i][j]] for dim 1 of a
// 2-D tensor, and likewise for other ranks. index must be int32 with x's rank
// and may be shorter than x only along dim.
//
// Picking each sample's log-probability at its label:
//
//	logp:   [64, 10]
//	labels: [64, 1]
//	Gather(logp, 1, labels) -> [64, 1]
func (cpu *CPUBackend) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	if index.DType() != tensor.Int32 {
		panic(fmt.Sprintf("gather: index must be int32, got %s", index.DType()))
	}
	xs, is := x.Shape(), index.Shape()
	if len(xs) != len(is) {
		panic(fmt.Sprintf("gather: index rank %d does not match input rank %d", len(is), len(xs)))
	}
	dim = xs.NormalizeDim(dim)
	for d := range xs {
		if d != dim && is[d] != xs[d] {
			panic(fmt.Sprintf("gather: index shape %v incompatible with input %v at dimension %d", is, xs, d))
		}
	}

	offsets := tensor.GatherOffsets(xs, is, dim, index.AsInt32())
	out := cpu.alloc("gather", is, x.DType())
	switch x.DType() {
	case tensor.Float32:
		gatherKernel(out.AsFloat32(), x.AsFloat32(), offsets)
	case tensor.Float64:
		gatherKernel(out.AsFloat64(), x.AsFloat64(), offsets)
	case tensor.Int32:
		gatherKernel(out.AsInt32(), x.AsInt32(), offsets)
	case tensor.Uint8:
		gatherKernel(out.AsUint8(), x.AsUint8(), offsets)
	}
	return out
}

func gatherKernel[T number](dst, src []T, offsets []int) {
	for i, off := range offsets {
		dst[i] = src[off]
	}
}
