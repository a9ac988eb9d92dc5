package serialization

import "time"

const (
	Magic         = "DGRD"
	FormatVersion = 1
	ChecksumSize  = 32

	// prefixSize covers magic, version and header length.
	prefixSize = 4 + 4 + 8

	MaxHeaderSize    = 16 << 20
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 256
)

// Header is the JSON document at the start of a checkpoint.
type Header struct {
	Version    int               `json:"version"`
	ModelType  string            `json:"model_type"`
	CreatedAt  time.Time         `json:"created_at"`
	Tensors    []TensorMeta      `json:"tensors"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Checkpoint *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records where training stopped.
type CheckpointMeta struct {
	Epoch         int            `json:"epoch"`
	Step          int64          `json:"step"`
	Loss          float64        `json:"loss"`
	Accuracy      float64        `json:"accuracy"`
	OptimizerType string         `json:"optimizer_type"`
	Optimizer     map[string]any `json:"optimizer,omitempty"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}
