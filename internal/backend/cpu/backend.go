// Package cpu implements tensor.Backend in pure Go, with gonum BLAS for
// matrix products and row-parallel kernels for the rest.
package cpu

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/parallel"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// CPUBackend executes tensor operations on the host.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a backend that fans row kernels out over physical cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a backend with explicit parallelism settings.
// parallel.Sequential() gives fully deterministic single-goroutine execution.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: tensor.CPU, par: cfg}
}

func (cpu *CPUBackend) Name() string { return "CPU" }

func (cpu *CPUBackend) Device() tensor.Device { return cpu.device }

// Parallel reports the fan-out settings in use.
func (cpu *CPUBackend) Parallel() parallel.Config { return cpu.par }

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	return out
}

func requireFloat(op string, x *tensor.RawTensor) {
	if !x.DType().IsFloat() {
		panic(fmt.Sprintf("%s: unsupported dtype %s (float32/float64 only)", op, x.DType()))
	}
}

func requireSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}
