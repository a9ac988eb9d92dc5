// Package tensor provides the typed tensor, its raw buffer and the Backend
// contract that compute implementations satisfy.
package tensor

import "fmt"

// DType constrains the element types a Tensor may hold.
//
// Images and activations are float32, reference arithmetic in tests uses
// float64, class labels are int32 and raw IDX pixels are uint8.
type DType interface {
	~float32 | ~float64 | ~int32 | ~uint8
}

// DataType is the runtime tag carried by every RawTensor.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Uint8
)

// Size returns the width of one element in bytes.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	}
	panic(fmt.Sprintf("tensor: unknown data type %d", int(dt)))
}

// IsFloat reports whether the type takes part in differentiable math.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String, used when reading checkpoints.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "int32":
		return Int32, nil
	case "uint8":
		return Uint8, nil
	}
	return 0, fmt.Errorf("tensor: unsupported data type %q", s)
}

// dataTypeOf maps a Go element type to its runtime tag.
func dataTypeOf[T DType]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case uint8:
		return Uint8
	}
	panic(fmt.Sprintf("tensor: unsupported element type %T", zero))
}
