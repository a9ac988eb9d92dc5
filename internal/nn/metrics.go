package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Predict returns the arg-max class of each row of a [batch, classes] tensor.
func Predict[B tensor.Backend](scores *tensor.Tensor[float32, B]) []int32 {
	if len(scores.Shape()) != 2 {
		panic(fmt.Sprintf("predict: expected [batch, classes], got %v", scores.Shape()))
	}
	return scores.Argmax(1).Data()
}

// Accuracy returns the number of correct predictions and their fraction of
// the batch.
func Accuracy[B tensor.Backend](scores *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) (correct int, acc float64) {
	pred := Predict(scores)
	want := targets.Data()
	if len(pred) != len(want) {
		panic(fmt.Sprintf("accuracy: %d predictions but %d targets", len(pred), len(want)))
	}
	for i := range pred {
		if pred[i] == want[i] {
			correct++
		}
	}
	if len(pred) == 0 {
		return 0, 0
	}
	return correct, float64(correct) / float64(len(pred))
}

// Probabilities converts log-probabilities back to probabilities.
func Probabilities[B tensor.Backend](logProbs *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return logProbs.Exp()
}

// FormatProbabilities renders one row of class probabilities as a table,
// marking the most likely class.
func FormatProbabilities(probs []float32) string {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	var sb strings.Builder
	sb.WriteString("class  probability\n")
	for i, p := range probs {
		mark := ""
		if i == best {
			mark = "  <"
		}
		fmt.Fprintf(&sb, "%5d  %.4f%s\n", i, p, mark)
	}
	return sb.String()
}
