package cpu

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Reshape returns a tensor sharing x's buffer under a new shape.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	view, err := x.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes dimensions into a new contiguous buffer.
// With no axes the dimension order is reversed.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: %d axes for %d-D tensor", len(axes), rank))
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, a := range axes {
		if a < 0 || a >= rank || seen[a] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[a] = true
		outShape[i] = shape[a]
	}

	// srcStrides[i] is the step in x for one step along output axis i.
	inStrides := x.Strides()
	srcStrides := make([]int, rank)
	for i, a := range axes {
		srcStrides[i] = inStrides[a]
	}

	out := cpu.alloc("transpose", outShape, x.DType())
	outStrides := outShape.ComputeStrides()
	switch x.DType() {
	case tensor.Float32:
		permute(out.AsFloat32(), x.AsFloat32(), outStrides, srcStrides)
	case tensor.Float64:
		permute(out.AsFloat64(), x.AsFloat64(), outStrides, srcStrides)
	case tensor.Int32:
		permute(out.AsInt32(), x.AsInt32(), outStrides, srcStrides)
	case tensor.Uint8:
		permute(out.AsUint8(), x.AsUint8(), outStrides, srcStrides)
	}
	return out
}

func permute[T number](dst, src []T, outStrides, srcStrides []int) {
	if len(outStrides) == 2 {
		rows, cols := len(dst)/outStrides[0], outStrides[0]
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				dst[i*cols+j] = src[i*srcStrides[0]+j*srcStrides[1]]
			}
		}
		return
	}
	for i := range dst {
		dst[i] = src[sourceIndex(i, outStrides, srcStrides)]
	}
}
