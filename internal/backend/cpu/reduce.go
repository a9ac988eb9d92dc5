package cpu

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/parallel"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// split views shape as [outer, n, inner] around dim.
func split(shape tensor.Shape, dim int) (outer, n, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			out = append(out, d)
		case keepDim:
			out = append(out, 1)
		}
	}
	return out
}

// Sum adds every element into a 0-D tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := cpu.alloc("sum", tensor.Shape{}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		// Accumulate in float64 so a 60k-element sum does not drift.
		var acc float64
		for _, v := range x.AsFloat32() {
			acc += float64(v)
		}
		out.AsFloat32()[0] = float32(acc)
	case tensor.Float64:
		out.AsFloat64()[0] = sumSlice(x.AsFloat64())
	case tensor.Int32:
		out.AsInt32()[0] = sumSlice(x.AsInt32())
	case tensor.Uint8:
		out.AsUint8()[0] = sumSlice(x.AsUint8())
	}
	return out
}

func sumSlice[T number](s []T) T {
	var acc T
	for _, v := range s {
		acc += v
	}
	return acc
}

// SumDim sums along dim (negative counts from the end).
//
//	x: [64, 10]
//	SumDim(x, 1, true)  -> [64, 1]
//	SumDim(x, 0, false) -> [10]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat("sumdim", x)
	dim = x.Shape().NormalizeDim(dim)
	out := cpu.alloc("sumdim", reducedShape(x.Shape(), dim, keepDim), x.DType())
	outer, n, inner := split(x.Shape(), dim)
	switch x.DType() {
	case tensor.Float32:
		sumDim(out.AsFloat32(), x.AsFloat32(), outer, n, inner)
	case tensor.Float64:
		sumDim(out.AsFloat64(), x.AsFloat64(), outer, n, inner)
	}
	return out
}

func sumDim[T ~float32 | ~float64](dst, src []T, outer, n, inner int) {
	for o := 0; o < outer; o++ {
		for j := 0; j < inner; j++ {
			var acc T
			for i := 0; i < n; i++ {
				acc += src[(o*n+i)*inner+j]
			}
			dst[o*inner+j] = acc
		}
	}
}

// MeanDim averages along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	n := x.Shape()[x.Shape().NormalizeDim(dim)]
	sum := cpu.SumDim(x, dim, keepDim)
	scale := 1 / float64(n)
	switch sum.DType() {
	case tensor.Float32:
		for i, v := range sum.AsFloat32() {
			sum.AsFloat32()[i] = v * float32(scale)
		}
	case tensor.Float64:
		for i, v := range sum.AsFloat64() {
			sum.AsFloat64()[i] = v * scale
		}
	}
	return sum
}

// Argmax returns int32 positions of the maximum along dim, with dim removed.
// Ties resolve to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	dim = x.Shape().NormalizeDim(dim)
	shape := reducedShape(x.Shape(), dim, false)
	out := cpu.alloc("argmax", shape, tensor.Int32)
	outer, n, inner := split(x.Shape(), dim)
	idx := out.AsInt32()
	switch x.DType() {
	case tensor.Float32:
		argmax(idx, x.AsFloat32(), outer, n, inner, cpu.par)
	case tensor.Float64:
		argmax(idx, x.AsFloat64(), outer, n, inner, cpu.par)
	case tensor.Int32:
		argmax(idx, x.AsInt32(), outer, n, inner, cpu.par)
	case tensor.Uint8:
		argmax(idx, x.AsUint8(), outer, n, inner, cpu.par)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}
	return out
}

func argmax[T number](dst []int32, src []T, outer, n, inner int, cfg parallel.Config) {
	parallel.For(outer*inner, func(k int) {
		o, j := k/inner, k%inner
		base := o*n*inner + j
		best, bestAt := src[base], 0
		for i := 1; i < n; i++ {
			if v := src[base+i*inner]; v > best {
				best, bestAt = v, i
			}
		}
		dst[k] = int32(bestAt)
	}, cfg)
}
