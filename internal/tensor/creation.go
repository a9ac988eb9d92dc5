package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros allocates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T](raw, b)
}

// Full allocates a tensor with every element set to v.
func Full[T DType, B Backend](shape Shape, v T, b B) *Tensor[T, B] {
	t := Zeros[T](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = v
	}
	return t
}

// Ones allocates a tensor of ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T](shape, T(1), b)
}

// ZerosLike allocates a zero raw tensor matching x's shape and dtype.
// They are used to seed and accumulate gradients.
func ZerosLike(x *RawTensor) *RawTensor {
	return MustRaw(x.Shape(), x.DType(), x.Device())
}

// OnesLike returns a raw tensor of ones with x's shape and dtype.
func OnesLike(x *RawTensor) *RawTensor {
	out := ZerosLike(x)
	switch out.DType() {
	case Float32:
		fill(out.AsFloat32(), 1)
	case Float64:
		fill(out.AsFloat64(), 1)
	case Int32:
		fill(out.AsInt32(), 1)
	case Uint8:
		fill(out.AsUint8(), 1)
	}
	return out
}

func fill[T DType](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

// Randn draws from N(0, 1). The generator is explicit so runs are reproducible.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T](shape, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = float32(rng.NormFloat64())
		}
	case []float64:
		for i := range data {
			data[i] = rng.NormFloat64()
		}
	default:
		panic(fmt.Sprintf("Randn: %s is not a float type", t.DType()))
	}
	return t
}

// Uniform draws from U(lo, hi).
func Uniform[T DType, B Backend](shape Shape, lo, hi float64, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T](shape, b)
	span := hi - lo
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = float32(lo + span*rng.Float64())
		}
	case []float64:
		for i := range data {
			data[i] = lo + span*rng.Float64()
		}
	default:
		panic(fmt.Sprintf("Uniform: %s is not a float type", t.DType()))
	}
	return t
}

// Rand draws from U(0, 1).
func Rand[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return Uniform[T](shape, 0, 1, rng, b)
}
