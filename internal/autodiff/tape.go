package autodiff

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/autodiff/ops"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// Gradients maps a tensor handle to dL/dtensor.
type Gradients map[*tensor.RawTensor]*tensor.RawTensor

// GradientTape records operations during the forward pass and replays them
// in reverse to compute gradients.
//
//	tape.StartRecording()
//	loss := forward()
//	grads := tape.Backward(ones, backend)
//	tape.Clear()
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape returns an empty, idle tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 64)}
}

func (t *GradientTape) StartRecording() { t.recording = true }

func (t *GradientTape) StopRecording() { t.recording = false }

func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op while recording; otherwise it is dropped.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear forgets all recorded operations. The recording flag is unchanged.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps reports how many operations are on the tape.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// NoGrad runs fn with recording suspended and restores the previous state,
// even if fn panics.
func (t *GradientTape) NoGrad(fn func()) {
	was := t.recording
	t.recording = false
	defer func() { t.recording = was }()
	fn()
}

// Backward seeds the last recorded output with outputGrad and walks the tape
// in reverse, applying the chain rule.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) Gradients {
	if len(t.operations) == 0 {
		return make(Gradients)
	}
	return t.BackwardFrom(t.operations[len(t.operations)-1].Output(), outputGrad, backend)
}

// BackwardFrom seeds output with outputGrad and walks the tape in reverse.
// A tensor that fed several operations receives the sum of their
// contributions. Operations recorded after output contribute nothing.
//
// Recording is suspended for the duration so gradient arithmetic performed
// through an AutodiffBackend does not land on the tape.
func (t *GradientTape) BackwardFrom(output, outputGrad *tensor.RawTensor, backend tensor.Backend) Gradients {
	if !output.Shape().Equal(outputGrad.Shape()) {
		panic(fmt.Sprintf("backward: seed gradient shape %v does not match output %v", outputGrad.Shape(), output.Shape()))
	}
	grads := Gradients{output: outputGrad}

	was := t.recording
	t.recording = false
	defer func() { t.recording = was }()

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue
		}
		// g may be handed straight to several inputs; keep backends from
		// overwriting it.
		unpin := g.ForceNonUnique()
		inputGrads := op.Backward(g, backend)
		unpin()

		for j, in := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if prev, seen := grads[in]; seen {
				grads[in] = backend.Add(prev, inputGrads[j])
			} else {
				grads[in] = inputGrads[j]
			}
		}
	}
	return grads
}
