package tensor

import "fmt"

// Shape lists the size of every dimension, outermost first.
// The empty Shape is a scalar.
type Shape []int

// NumElements returns the product of all dimensions (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects non-positive dimensions.
func (s Shape) Validate() error {
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("dimension %d is %d, must be positive", i, d)
		}
	}
	return nil
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	if s == nil {
		return Shape{}
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// ComputeStrides returns row-major strides in elements.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// NormalizeDim resolves a possibly negative dimension index against the rank.
func (s Shape) NormalizeDim(dim int) int {
	if dim < 0 {
		dim += len(s)
	}
	if dim < 0 || dim >= len(s) {
		panic(fmt.Sprintf("dimension %d out of range for shape %v", dim, s))
	}
	return dim
}

// BroadcastShapes combines two shapes under NumPy broadcasting rules:
// dimensions are aligned from the right, and a pair is compatible when the
// sizes match or one of them is 1. Missing leading dimensions count as 1.
//
// The boolean result reports whether either input has to be expanded.
//
//	[64, 10] + [1, 10] -> [64, 10], true
//	[64, 10] + [64, 10] -> [64, 10], false
//	[64, 10] + [64, 9] -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	expanded := len(a) != len(b)

	for i := 1; i <= rank; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db:
			out[rank-i] = da
		case da == 1:
			out[rank-i] = db
			expanded = true
		case db == 1:
			out[rank-i] = da
			expanded = true
		default:
			return nil, false, fmt.Errorf("cannot broadcast %v with %v: dimension %d is %d vs %d",
				a, b, rank-i, da, db)
		}
	}
	return out, expanded, nil
}
