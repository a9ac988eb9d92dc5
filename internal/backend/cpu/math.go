package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/digitgrad/internal/tensor"
)

func (cpu *CPUBackend) unaryFloat(op string, x *tensor.RawTensor, f32 func(float32) float32, f64 func(float64) float64) *tensor.RawTensor {
	requireFloat(op, x)
	out := cpu.alloc(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), out.AsFloat32()
		for i, v := range src {
			dst[i] = f32(v)
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), out.AsFloat64()
		for i, v := range src {
			dst[i] = f64(v)
		}
	}
	return out
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("exp", x, math32.Exp, math.Exp)
}

// Log computes the natural logarithm element-wise.
// Non-positive inputs panic rather than produce -Inf or NaN.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("log", x,
		func(v float32) float32 {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value %g", v))
			}
			return math32.Log(v)
		},
		func(v float64) float64 {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value %g", v))
			}
			return math.Log(v)
		})
}

// ReLU computes max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryFloat("relu", x,
		func(v float32) float32 { return max(v, 0) },
		func(v float64) float64 { return max(v, 0) })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.scalar("mulscalar", x, s, opMul)
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.scalar("addscalar", x, s, opAdd)
}

func (cpu *CPUBackend) scalar(name string, x *tensor.RawTensor, s float64, op binaryOp) *tensor.RawTensor {
	out := cpu.alloc(name, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		scalarKernel(op, out.AsFloat32(), x.AsFloat32(), float32(s))
	case tensor.Float64:
		scalarKernel(op, out.AsFloat64(), x.AsFloat64(), s)
	case tensor.Int32:
		scalarKernel(op, out.AsInt32(), x.AsInt32(), int32(s))
	case tensor.Uint8:
		scalarKernel(op, out.AsUint8(), x.AsUint8(), uint8(s))
	}
	return out
}

func scalarKernel[T number](op binaryOp, dst, src []T, s T) {
	for i, v := range src {
		dst[i] = apply(op, v, s)
	}
}
