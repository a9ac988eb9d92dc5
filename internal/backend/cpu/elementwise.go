package cpu

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/tensor"
)

type number interface {
	~float32 | ~float64 | ~int32 | ~uint8
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
)

func (op binaryOp) String() string {
	return [...]string{"add", "sub", "mul", "div"}[op]
}

func apply[T number](op binaryOp, x, y T) T {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	default:
		return x / y
	}
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opMul, a, b)
}

// Div performs element-wise division with broadcasting. Integer division by
// zero panics like any Go integer division.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary(opDiv, a, b)
}

func (cpu *CPUBackend) binary(op binaryOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	requireSameDType(op.String(), a, b)
	outShape, broadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	// Same shape and nobody else holds a: write into it.
	if !broadcast && a.IsUnique() {
		binaryInto(op, a, a, b, outShape)
		return a
	}
	out := cpu.alloc(op.String(), outShape, a.DType())
	binaryInto(op, out, a, b, outShape)
	return out
}

func binaryInto(op binaryOp, out, a, b *tensor.RawTensor, outShape tensor.Shape) {
	switch a.DType() {
	case tensor.Float32:
		binaryKernel(op, out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case tensor.Float64:
		binaryKernel(op, out.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case tensor.Int32:
		binaryKernel(op, out.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case tensor.Uint8:
		binaryKernel(op, out.AsUint8(), a.AsUint8(), b.AsUint8(), a.Shape(), b.Shape(), outShape)
	}
}

func binaryKernel[T number](op binaryOp, out, a, b []T, aShape, bShape, outShape tensor.Shape) {
	switch {
	case len(a) == len(out) && len(b) == len(out):
		for i := range out {
			out[i] = apply(op, a[i], b[i])
		}
	case len(b) == 1:
		s := b[0]
		for i := range out {
			out[i] = apply(op, a[i], s)
		}
	default:
		outStrides := outShape.ComputeStrides()
		aStrides := broadcastStrides(aShape, outShape)
		bStrides := broadcastStrides(bShape, outShape)
		for i := range out {
			out[i] = apply(op, a[sourceIndex(i, outStrides, aStrides)], b[sourceIndex(i, outStrides, bStrides)])
		}
	}
}

// broadcastStrides gives the strides to read an input of shape in while
// walking outShape: broadcast and missing dimensions get stride 0.
func broadcastStrides(in, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	inStrides := in.ComputeStrides()
	pad := len(outShape) - len(in)
	for i := range outShape {
		j := i - pad
		if j < 0 || in[j] == 1 {
			continue
		}
		strides[i] = inStrides[j]
	}
	return strides
}

func sourceIndex(flat int, outStrides, inStrides []int) int {
	idx := 0
	for d, s := range outStrides {
		idx += (flat / s) * inStrides[d]
		flat %= s
	}
	return idx
}
