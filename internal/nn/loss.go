package nn

import (
	"fmt"

	"github.com/born-ml/digitgrad/internal/autodiff/ops"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// LossBackend is implemented by backends with fused, differentiable loss
// kernels (the autodiff backend). Plain backends fall back to the forward
// computation only.
type LossBackend interface {
	NLLLoss(logProbs, targets *tensor.RawTensor) *tensor.RawTensor
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// Loss reduces a batch of scores and int32 class targets to a 0-D loss.
type Loss[B tensor.Backend] interface {
	Forward(scores *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B]
}

// NLLLoss is the library negative log-likelihood over log-probabilities.
type NLLLoss[B tensor.Backend] struct{}

func NewNLLLoss[B tensor.Backend]() *NLLLoss[B] { return &NLLLoss[B]{} }

func (l *NLLLoss[B]) Forward(logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	b := logProbs.Backend()
	var out *tensor.RawTensor
	if lb, ok := any(b).(LossBackend); ok {
		out = lb.NLLLoss(logProbs.Raw(), targets.Raw())
	} else {
		out = ops.NLLLossForward(logProbs.Raw(), targets.Raw())
	}
	return tensor.New[float32](out, b)
}

func (l *NLLLoss[B]) String() string { return "NLLLoss()" }

// ManualNLLLoss is NLLLoss spelled out with tensor primitives. See ManualNLL.
type ManualNLLLoss[B tensor.Backend] struct{}

func NewManualNLLLoss[B tensor.Backend]() *ManualNLLLoss[B] { return &ManualNLLLoss[B]{} }

func (l *ManualNLLLoss[B]) Forward(logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return ManualNLL(logProbs, targets)
}

func (l *ManualNLLLoss[B]) String() string { return "ManualNLLLoss()" }

// ManualNLL picks each row's log-probability at its target, averages the
// picks over the batch and negates the mean:
//
//	-mean(logProbs.gather(1, targets.view(-1, 1)))
//
// Every step is an ordinary recorded op, so gradients flow through it on an
// autodiff backend and must agree with NLLLoss.
func ManualNLL[B tensor.Backend](logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	s := logProbs.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("manual nll: expected [batch, classes] log-probabilities, got %v", s))
	}
	if len(targets.Shape()) != 1 || targets.Shape()[0] != s[0] {
		panic(fmt.Sprintf("manual nll: expected targets of shape [%d], got %v", s[0], targets.Shape()))
	}
	picked := logProbs.Gather(1, targets.Reshape(-1, 1))
	return picked.Mean().Neg()
}

// ManualNLLValue computes the same quantity on plain slices, with the sum in
// float64. It returns an error for ragged rows, a length mismatch or an out
// of range target.
func ManualNLLValue(logProbs [][]float32, targets []int32) (float64, error) {
	if len(logProbs) != len(targets) {
		return 0, fmt.Errorf("manual nll: %d rows but %d targets", len(logProbs), len(targets))
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("manual nll: empty batch")
	}
	var total float64
	for i, row := range logProbs {
		c := targets[i]
		if c < 0 || int(c) >= len(row) {
			return 0, fmt.Errorf("manual nll: target %d at row %d outside [0, %d)", c, i, len(row))
		}
		total += float64(row[c])
	}
	return -total / float64(len(targets)), nil
}

// CrossEntropyLoss applies log-softmax and NLL in one step, for models
// without a LogSoftmax head.
type CrossEntropyLoss[B tensor.Backend] struct{}

func NewCrossEntropyLoss[B tensor.Backend]() *CrossEntropyLoss[B] { return &CrossEntropyLoss[B]{} }

func (l *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	b := logits.Backend()
	var out *tensor.RawTensor
	if lb, ok := any(b).(LossBackend); ok {
		out = lb.CrossEntropy(logits.Raw(), targets.Raw())
	} else {
		out = ops.CrossEntropyForward(logits.Raw(), targets.Raw())
	}
	return tensor.New[float32](out, b)
}

func (l *CrossEntropyLoss[B]) String() string { return "CrossEntropyLoss()" }

// LossKind names a loss in config files and on the command line.
type LossKind string

const (
	LossNLL          LossKind = "nll"
	LossManualNLL    LossKind = "manual"
	LossCrossEntropy LossKind = "cross_entropy"
)

// ParseLoss validates a loss name.
func ParseLoss(s string) (LossKind, error) {
	switch k := LossKind(s); k {
	case LossNLL, LossManualNLL, LossCrossEntropy:
		return k, nil
	case "":
		return LossNLL, nil
	}
	return "", fmt.Errorf("unknown loss %q (want nll, manual or cross_entropy)", s)
}

// NewLoss builds the loss for kind. CrossEntropy expects raw scores, the
// other two expect log-probabilities.
func NewLoss[B tensor.Backend](kind LossKind) (Loss[B], error) {
	switch kind {
	case LossNLL:
		return NewNLLLoss[B](), nil
	case LossManualNLL:
		return NewManualNLLLoss[B](), nil
	case LossCrossEntropy:
		return NewCrossEntropyLoss[B](), nil
	}
	return nil, fmt.Errorf("unknown loss %q", kind)
}

// WantsLogSoftmax reports whether the model feeding kind needs a
// LogSoftmax head.
func (k LossKind) WantsLogSoftmax() bool { return k != LossCrossEntropy }
