package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// ValidateTensorName rejects empty, oversized and path-like names.
func ValidateTensorName(name string) error {
	bad := func(details string) error {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: details}
	}
	switch {
	case name == "":
		return bad("empty name")
	case len(name) > MaxTensorNameLen:
		return bad(fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen))
	case strings.Contains(name, ".."):
		return bad("contains '..'")
	case strings.ContainsAny(name, "/\\\x00"):
		return bad("contains a path separator or NUL")
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor lies inside a data section
// of dataSize bytes and that no two tensors overlap.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	sorted := append([]TensorMeta(nil), tensors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 || t.Offset+t.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d, data section is %d bytes", t.Offset, t.Size, dataSize),
			}
		}
		if i+1 < len(sorted) && t.Offset+t.Size > sorted[i+1].Offset {
			next := sorted[i+1]
			return &ValidationError{
				Err:     ErrOffsetOverlap,
				Tensor:  t.Name,
				Tensor2: next.Name,
				Details: fmt.Sprintf("[%d, %d) and [%d, %d)", t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
			}
		}
	}
	return nil
}

// ValidateHeader checks names, dtypes, sizes and placement of every tensor.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{Err: ErrOutOfBounds, Details: fmt.Sprintf("%d tensors, max %d", len(h.Tensors), MaxTensorCount)}
	}
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Err: ErrInvalidTensorName, Tensor: t.Name, Details: "duplicate name"}
		}
		seen[t.Name] = true

		dt, err := tensor.ParseDataType(t.DType)
		if err != nil {
			return &ValidationError{Err: ErrInvalidTensorName, Tensor: t.Name, Details: err.Error()}
		}
		shape := tensor.Shape(t.Shape)
		if err := shape.Validate(); err != nil {
			return &ValidationError{Err: ErrOutOfBounds, Tensor: t.Name, Details: err.Error()}
		}
		if want := int64(shape.NumElements() * dt.Size()); want != t.Size {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("%s%v needs %d bytes, header says %d", t.DType, t.Shape, want, t.Size),
			}
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
