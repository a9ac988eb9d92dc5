// Package ops holds the differentiable operations recorded on the gradient
// tape. Each one keeps what its backward rule needs from the forward pass.
//
//   - AddOp, SubOp, MulOp, DivOp: element-wise, broadcast-aware
//   - MulScalarOp, AddScalarOp: affine maps by a constant
//   - MatMulOp, TransposeOp, ReshapeOp: linear algebra and views
//   - ExpOp, LogOp, ReLUOp: element-wise nonlinearities
//   - LogSoftmaxOp: log-probabilities along a dimension
//   - SumOp, SumDimOp, MeanDimOp: reductions
//   - GatherOp: index selection, scatters on the way back
//   - NLLLossOp, CrossEntropyOp: fused classification losses
package ops

import "github.com/born-ml/digitgrad/internal/tensor"

// Operation is one recorded node of the computation graph.
type Operation interface {
	// Backward maps dL/dOutput to dL/dInput for each entry of Inputs.
	// A nil entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs lists the differentiable inputs, in the order Backward returns them.
	Inputs() []*tensor.RawTensor

	Output() *tensor.RawTensor
}

// node stores the graph edges shared by every operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func edges(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

func (n node) Inputs() []*tensor.RawTensor { return n.inputs }
func (n node) Output() *tensor.RawTensor { return n.output }
