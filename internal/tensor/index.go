package tensor

import "fmt"

// GatherOffsets maps every position of an int32 index tensor of shape is to
// the flat element of a tensor of shape xs it selects along dim. Backends use
// it for the forward read and the autodiff package for the matching scatter.
// Indices outside [0, xs[dim]) panic.
func GatherOffsets(xs, is Shape, dim int, idx []int32) []int {
	xStrides := xs.ComputeStrides()
	iStrides := is.ComputeStrides()
	offsets := make([]int, len(idx))
	for flat, v := range idx {
		if v < 0 || int(v) >= xs[dim] {
			panic(fmt.Sprintf("gather: index %d out of range for dimension %d of size %d", v, dim, xs[dim]))
		}
		off, rem := 0, flat
		for d, s := range iStrides {
			c := rem / s
			rem %= s
			if d == dim {
				c = int(v)
			}
			off += c * xStrides[d]
		}
		offsets[flat] = off
	}
	return offsets
}
