// Package autodiff adds reverse-mode differentiation to any tensor.Backend.
//
// AutodiffBackend decorates a backend: each call runs the wrapped backend and,
// while the tape is recording, appends an ops.Operation describing how to push
// gradients back through it.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, backend)
//	grads[x.Raw()] // [4]
package autodiff

import (
	"github.com/born-ml/digitgrad/internal/autodiff/ops"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// AutodiffBackend wraps B and records differentiable operations on a tape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend. The tape starts out not recording.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape gives direct control over recording.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

func (b *AutodiffBackend[B]) Name() string { return "Autodiff(" + b.inner.Name() + ")" }

func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

// Every differentiable method pins its inputs for the duration of the call:
// an in-place write by the inner backend would corrupt values the backward
// pass still needs.

func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()
	out := b.inner.Add(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(a, c, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()
	out := b.inner.Sub(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(a, c, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()
	out := b.inner.Mul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(a, c, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()
	out := b.inner.Div(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(a, c, out))
	}
	return out
}

func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	defer a.ForceNonUnique()()
	defer c.ForceNonUnique()()
	out := b.inner.MatMul(a, c)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(a, c, out))
	}
	return out
}

// Reshape is recorded even though the result shares x's buffer: gradients
// are keyed by tensor handle, so the view needs its own edge back to x.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Reshape(x, shape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(x, out))
	}
	return out
}

// Transpose must be recorded for Linear: the layer multiplies by Wᵀ, a new
// tensor, and the optimizer looks the gradient up under W.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Transpose(x, axes...)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(x, axes, out))
	}
	return out
}

func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.MulScalar(x, s)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulScalarOp(x, s, out))
	}
	return out
}

func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.AddScalar(x, s)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddScalarOp(x, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Exp(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewExpOp(x, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Log(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLogOp(x, out))
	}
	return out
}

func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.ReLU(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, out))
	}
	return out
}

func (b *AutodiffBackend[B]) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.LogSoftmax(x, dim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLogSoftmaxOp(x, dim, out))
	}
	return out
}

func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Sum(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumOp(x, out))
	}
	return out
}

func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.SumDim(x, dim, keepDim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSumDimOp(x, dim, out))
	}
	return out
}

func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.MeanDim(x, dim, keepDim)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMeanDimOp(x, dim, out))
	}
	return out
}

// Argmax is not differentiable and is never recorded.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}

// Gather records a scatter-add backward into x. The index gets no gradient.
func (b *AutodiffBackend[B]) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	out := b.inner.Gather(x, dim, index)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewGatherOp(x, dim, index, out))
	}
	return out
}

// NLLLoss is the fused negative log-likelihood: -mean_i logProbs[i, targets[i]]
// for logProbs [batch, classes] and int32 targets [batch]. One op is recorded
// instead of the gather/mean/negate chain.
func (b *AutodiffBackend[B]) NLLLoss(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	defer logProbs.ForceNonUnique()()
	out := ops.NLLLossForward(logProbs, targets)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewNLLLossOp(logProbs, targets, out))
	}
	return out
}

// CrossEntropy fuses log-softmax and NLLLoss on raw logits.
//
//	dL/dlogits = (softmax(logits) - onehot(targets)) / batch
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	defer logits.ForceNonUnique()()
	out := ops.CrossEntropyForward(logits, targets)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCrossEntropyOp(logits, targets, out))
	}
	return out
}
