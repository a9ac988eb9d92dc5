package serialization

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrTruncated          = errors.New("file truncated")
)

// ValidationError describes a malformed header entry. It unwraps to one of
// the sentinel errors above.
type ValidationError struct {
	Err     error
	Tensor  string
	Tensor2 string // second tensor of an overlap
	Details string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Tensor2 != "":
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	case e.Tensor != "":
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

func (e *ValidationError) Unwrap() error { return e.Err }
