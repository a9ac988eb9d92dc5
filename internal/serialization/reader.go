package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// File is a decoded checkpoint.
type File struct {
	Header  Header
	Tensors map[string]*tensor.RawTensor
}

// Load reads and verifies the checkpoint at path.
func Load(path string) (*File, error) {
	//nolint:gosec // G304: checkpoint paths come from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode parses a checkpoint held in memory. The checksum is verified
// before any tensor is built, and every tensor gets its own buffer.
func Decode(data []byte) (*File, error) {
	if len(data) < prefixSize+ChecksumSize {
		return nil, ErrTruncated
	}
	if string(data[:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	r := bytes.NewReader(data[4:prefixSize])
	var (
		version    uint32
		headerSize uint64
	)
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	bodyEnd := len(data) - ChecksumSize
	if int64(headerSize) > int64(bodyEnd-prefixSize) {
		return nil, ErrTruncated
	}

	sum := newChecksum()
	sum.Write(data[prefixSize:bodyEnd])
	if err := ValidateChecksum(sum.Sum(nil), data[bodyEnd:]); err != nil {
		return nil, err
	}

	headerEnd := prefixSize + int(headerSize)
	var h Header
	if err := json.Unmarshal(data[prefixSize:headerEnd], &h); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	section := data[headerEnd:bodyEnd]
	if err := ValidateHeader(&h, int64(len(section))); err != nil {
		return nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(h.Tensors))
	for _, meta := range h.Tensors {
		dt, _ := tensor.ParseDataType(meta.DType) // checked by ValidateHeader
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		copy(raw.Data(), section[meta.Offset:meta.Offset+meta.Size])
		tensors[meta.Name] = raw
	}
	return &File{Header: h, Tensors: tensors}, nil
}

// ReadHeader returns only the header of the checkpoint in r, without
// verifying the checksum. It is meant for listing files.
func ReadHeader(r io.Reader) (*Header, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("read prefix: %w", err)
	}
	if string(prefix[:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(prefix[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	size := binary.LittleEndian.Uint64(prefix[8:])
	if size > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(buf, &h); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	return &h, nil
}
