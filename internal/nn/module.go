// Package nn holds the layers, losses and metrics of the digit classifier.
//
//   - Module: Forward plus the trainable Parameters it owns
//   - Parameter: a weight tensor and the gradient accumulated since ZeroGrad
//   - Linear, ReLU, LogSoftmax, Flatten, Sequential: model building blocks
//   - NLLLoss, ManualNLL, CrossEntropyLoss: classification losses
//   - Accuracy, Predict, Probabilities: evaluation helpers
package nn

import "github.com/born-ml/digitgrad/internal/tensor"

// Module is one stage of a network.
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, rng, backend),
//	    nn.NewLogSoftmax[B](1),
//	)
type Module[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the trainable tensors in a stable order; nil for
	// stateless modules.
	Parameters() []*Parameter[B]
}

// ZeroGrad resets the accumulated gradient of every parameter.
func ZeroGrad[B tensor.Backend](params []*Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// CollectGrads adds the gradients found in grads (as returned by the
// gradient tape) to the matching parameters. It returns how many parameters
// received a gradient.
func CollectGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) int {
	n := 0
	for _, p := range params {
		if g, ok := grads[p.Tensor().Raw()]; ok {
			p.AccumulateGrad(g)
			n++
		}
	}
	return n
}

// CountParameters returns the number of scalar weights.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}
