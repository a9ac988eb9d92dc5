package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Device identifies where a tensor's memory lives.
type Device int

// Known devices. Only CPU has a backend in this module.
const (
	CPU Device = iota
	WebGPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// buffer is the reference-counted storage shared between clones.
// A refcount of one means the owner may overwrite it in place.
type buffer struct {
	data []byte
	refs atomic.Int32
}

func newBuffer(size int) *buffer {
	b := &buffer{data: make([]byte, size)}
	b.refs.Store(1)
	return b
}

func (b *buffer) retain() { b.refs.Add(1) }
func (b *buffer) release() { b.refs.Add(-1) }
func (b *buffer) unique() bool { return b.refs.Load() == 1 }

// RawTensor is the untyped tensor that backends operate on: a shared buffer
// plus shape, strides and element type.
type RawTensor struct {
	buf    *buffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape %v: %w", shape, err)
	}
	return &RawTensor{
		buf:    newBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustRaw is NewRaw for shapes already known to be valid.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RawTensor) Shape() Shape { return r.shape }
func (r *RawTensor) Strides() []int { return r.stride }
func (r *RawTensor) DType() DataType { return r.dtype }
func (r *RawTensor) Device() Device { return r.device }
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }
func (r *RawTensor) ByteSize() int { return r.NumElements() * r.dtype.Size() }
func (r *RawTensor) Data() []byte { return r.buf.data }

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor holds %s, not %s", r.dtype, dt))
	}
}

// AsFloat32 views the buffer as float32 without copying.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	//nolint:gosec // length is bounded by NumElements
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsFloat64 views the buffer as float64 without copying.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	//nolint:gosec // length is bounded by NumElements
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsInt32 views the buffer as int32 without copying.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	//nolint:gosec // length is bounded by NumElements
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.buf.data[0])), r.NumElements())
}

// AsUint8 views the buffer as bytes.
func (r *RawTensor) AsUint8() []uint8 {
	r.mustBe(Uint8)
	return r.buf.data[:r.NumElements()]
}

// Float64s copies the elements of a float or integer tensor into a new
// []float64. It is meant for reporting and tests, not hot paths.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	case Int32:
		for i, v := range r.AsInt32() {
			out[i] = float64(v)
		}
	case Uint8:
		for i, v := range r.AsUint8() {
			out[i] = float64(v)
		}
	}
	return out
}

// Clone returns a tensor sharing this buffer. Both handles become non-unique,
// so neither can be overwritten in place until one is released.
func (r *RawTensor) Clone() *RawTensor {
	r.buf.retain()
	return &RawTensor{
		buf:    r.buf,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Copy returns a tensor with its own buffer holding the same bytes.
func (r *RawTensor) Copy() *RawTensor {
	out := MustRaw(r.shape, r.dtype, r.device)
	copy(out.buf.data, r.buf.data)
	return out
}

// Release drops this handle's claim on the shared buffer.
func (r *RawTensor) Release() {
	r.buf.release()
}

// IsUnique reports whether no other handle shares the buffer.
// Backends use it to decide whether an in-place write is safe.
func (r *RawTensor) IsUnique() bool {
	return r.buf.unique()
}

// ForceNonUnique pins the buffer so backends cannot write into it, and
// returns the function that unpins it:
//
//	defer x.ForceNonUnique()()
func (r *RawTensor) ForceNonUnique() func() {
	r.buf.retain()
	return r.buf.release
}

// WithShape returns a view of the same buffer under a new shape with the
// same element count.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v as %v: %d vs %d elements",
			r.shape, shape, r.NumElements(), shape.NumElements())
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape %v: %w", shape, err)
	}
	view := r.Clone()
	view.shape = shape.Clone()
	view.stride = shape.ComputeStrides()
	return view, nil
}
