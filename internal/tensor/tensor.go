package tensor

import (
	"fmt"
	"strings"
)

// Tensor is the typed handle user code works with. T fixes the element type
// at compile time and B is the backend that executes its operations.
//
//	b := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{64, 784}, b)
//	h := x.MatMul(w.T())
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps a RawTensor. The element type must match raw's dtype.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if want := dataTypeOf[T](); raw.DType() != want {
		panic(fmt.Sprintf("tensor.New: raw tensor holds %s, type parameter is %s", raw.DType(), want))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v holds %d elements, got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Scalar builds a 0-D tensor.
func Scalar[T DType, B Backend](v T, b B) *Tensor[T, B] {
	t := Zeros[T](Shape{}, b)
	t.Data()[0] = v
	return t
}

func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }
func (t *Tensor[T, B]) Device() Device { return t.raw.Device() }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw exposes the untyped tensor for backends and the autodiff tape.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the backend executing this tensor's operations.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Data is a zero-copy view of the elements. Writes go straight to the buffer.
func (t *Tensor[T, B]) Data() []T {
	switch any(*new(T)).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case float64:
		return any(t.raw.AsFloat64()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	case uint8:
		return any(t.raw.AsUint8()).([]T)
	}
	panic("unreachable")
}

// Item returns the value of a single-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item on tensor of shape %v", t.Shape()))
	}
	return t.Data()[0]
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of range for dimension %d of size %d", idx, i, shape[i]))
		}
		off += idx * t.raw.Strides()[i]
	}
	return off
}

// At reads one element.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set writes one element in place.
func (t *Tensor[T, B]) Set(v T, indices ...int) {
	t.Data()[t.offset(indices)] = v
}

// Row copies row i of a 2-D tensor.
func (t *Tensor[T, B]) Row(i int) []T {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Row on %d-D tensor", len(shape)))
	}
	if i < 0 || i >= shape[0] {
		panic(fmt.Sprintf("row %d out of range for %d rows", i, shape[0]))
	}
	out := make([]T, shape[1])
	copy(out, t.Data()[i*shape[1]:(i+1)*shape[1]])
	return out
}

// Detach returns a handle on the same data that the autodiff tape does not
// know about. Operations on it through a non-recording backend leave no trace.
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw, backend: t.backend}
}

// Clone shares the buffer copy-on-write.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Clone(), backend: t.backend}
}

// Copy returns a tensor with its own buffer.
func (t *Tensor[T, B]) Copy() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Copy(), backend: t.backend}
}

// String prints dtype, shape and, for small tensors, the values.
func (t *Tensor[T, B]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor[%s]%v", t.DType(), []int(t.Shape()))
	if t.NumElements() <= 16 {
		fmt.Fprintf(&sb, " %v", t.Data())
	}
	return sb.String()
}
