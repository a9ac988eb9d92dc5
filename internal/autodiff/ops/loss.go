package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/digitgrad/internal/tensor"
)

func checkClassification(op string, scores, targets *tensor.RawTensor) (n, classes int) {
	s, t := scores.Shape(), targets.Shape()
	if len(s) != 2 {
		panic(fmt.Sprintf("%s: expected [batch, classes] input, got %v", op, s))
	}
	if targets.DType() != tensor.Int32 || len(t) != 1 || t[0] != s[0] {
		panic(fmt.Sprintf("%s: expected int32 targets of shape [%d], got %s%v", op, s[0], targets.DType(), t))
	}
	requireFloat(op, scores)
	n, classes = s[0], s[1]
	for i, c := range targets.AsInt32() {
		if c < 0 || int(c) >= classes {
			panic(fmt.Sprintf("%s: target %d at row %d outside [0, %d)", op, c, i, classes))
		}
	}
	return n, classes
}

func scalarLike(x *tensor.RawTensor, v float64) *tensor.RawTensor {
	out := tensor.MustRaw(tensor.Shape{}, x.DType(), x.Device())
	switch x.DType() {
	case tensor.Float32:
		out.AsFloat32()[0] = float32(v)
	case tensor.Float64:
		out.AsFloat64()[0] = v
	}
	return out
}

// fromFloat64s builds a tensor shaped and typed like x holding vals.
func fromFloat64s(x *tensor.RawTensor, vals []float64) *tensor.RawTensor {
	out := tensor.ZerosLike(x)
	switch out.DType() {
	case tensor.Float32:
		dst := out.AsFloat32()
		for i, v := range vals {
			dst[i] = float32(v)
		}
	case tensor.Float64:
		copy(out.AsFloat64(), vals)
	}
	return out
}

// NLLLossForward computes -mean_i logProbs[i, targets[i]] as a 0-D tensor.
// The sum runs in float64 regardless of input precision.
func NLLLossForward(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	n, classes := checkClassification("nll_loss", logProbs, targets)
	lp := logProbs.Float64s()
	var total float64
	for i, c := range targets.AsInt32() {
		total += lp[i*classes+int(c)]
	}
	return scalarLike(logProbs, -total/float64(n))
}

// NLLLossOp: dL/dlogProbs[i, j] = -1/n where j is row i's target, else 0.
type NLLLossOp struct {
	node
	targets *tensor.RawTensor
}

func NewNLLLossOp(logProbs, targets, output *tensor.RawTensor) *NLLLossOp {
	return &NLLLossOp{node: edges(output, logProbs), targets: targets}
}

func (op *NLLLossOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logProbs := op.inputs[0]
	n, classes := logProbs.Shape()[0], logProbs.Shape()[1]
	scale := -scalarValue(g) / float64(n)
	grad := make([]float64, n*classes)
	for i, c := range op.targets.AsInt32() {
		grad[i*classes+int(c)] = scale
	}
	return []*tensor.RawTensor{fromFloat64s(logProbs, grad)}
}

// CrossEntropyForward is NLLLossForward applied to log_softmax(logits),
// computed row by row with the max-shift trick.
func CrossEntropyForward(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	n, classes := checkClassification("cross_entropy", logits, targets)
	z := logits.Float64s()
	var total float64
	for i, c := range targets.AsInt32() {
		row := z[i*classes : (i+1)*classes]
		total += logSumExp(row) - row[c]
	}
	return scalarLike(logits, total/float64(n))
}

func logSumExp(row []float64) float64 {
	peak := math.Inf(-1)
	for _, v := range row {
		peak = max(peak, v)
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(v - peak)
	}
	return peak + math.Log(sum)
}

// CrossEntropyOp: dL/dlogits = (softmax(logits) - onehot(targets)) / n.
type CrossEntropyOp struct {
	node
	targets *tensor.RawTensor
}

func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{node: edges(output, logits), targets: targets}
}

func (op *CrossEntropyOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logits := op.inputs[0]
	n, classes := logits.Shape()[0], logits.Shape()[1]
	scale := scalarValue(g) / float64(n)
	z := logits.Float64s()
	grad := make([]float64, len(z))
	for i, c := range op.targets.AsInt32() {
		row := z[i*classes : (i+1)*classes]
		lse := logSumExp(row)
		for j, v := range row {
			grad[i*classes+j] = math.Exp(v-lse) * scale
		}
		grad[i*classes+int(c)] -= scale
	}

	return []*tensor.RawTensor{fromFloat64s(logits, grad)}
}
