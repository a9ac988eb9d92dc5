package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// safeTensorEntry is one tensor in a SafeTensors header.
type safeTensorEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ExportSafeTensors writes state in the SafeTensors layout:
//
//	[8 bytes]  header length (uint64 LE)
//	[N bytes]  JSON header, tensors keyed by name plus "__metadata__"
//	[data]     tensor bytes in name order
func ExportSafeTensors(w io.Writer, state map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}
	var offset int64
	for _, name := range names {
		raw := state[name]
		dt, err := safeTensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		shape := make([]int64, len(raw.Shape()))
		for i, d := range raw.Shape() {
			shape[i] = int64(d)
		}
		size := int64(raw.ByteSize())
		header[name] = safeTensorEntry{DType: dt, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, name := range names {
		raw := state[name]
		if _, err := w.Write(raw.Data()[:raw.ByteSize()]); err != nil {
			return fmt.Errorf("write tensor %s: %w", name, err)
		}
	}
	return nil
}

// SaveSafeTensors writes a .safetensors file.
func SaveSafeTensors(path string, state map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: output path comes from the operator
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := ExportSafeTensors(f, state, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func safeTensorsDType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Uint8:
		return "U8", nil
	}
	return "", fmt.Errorf("no SafeTensors dtype for %s", dt)
}
