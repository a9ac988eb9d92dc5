package train

import (
	"fmt"
	"math"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// NLLReport compares three computations of the same negative
// log-likelihood.
type NLLReport struct {
	Library float64 // fused NLLLoss
	Manual  float64 // ManualNLL from tensor primitives
	Slices  float64 // ManualNLLValue on plain slices
	MaxDiff float64 // largest pairwise absolute difference
}

// Agree reports whether all three values are within tol of each other.
func (r NLLReport) Agree(tol float64) bool { return r.MaxDiff <= tol }

func (r NLLReport) String() string {
	return fmt.Sprintf("library=%.4f manual=%.4f slices=%.4f max_diff=%.2e", r.Library, r.Manual, r.Slices, r.MaxDiff)
}

// CheckNLL evaluates the library and hand-written losses on the same
// log-probabilities and targets.
func CheckNLL[B tensor.Backend](logProbs *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) (NLLReport, error) {
	if len(logProbs.Shape()) != 2 {
		return NLLReport{}, fmt.Errorf("nll check: expected [batch, classes], got %v", logProbs.Shape())
	}
	rows := make([][]float32, logProbs.Shape()[0])
	for i := range rows {
		rows[i] = logProbs.Row(i)
	}
	slices, err := nn.ManualNLLValue(rows, targets.Data())
	if err != nil {
		return NLLReport{}, err
	}

	r := NLLReport{
		Library: float64(nn.NewNLLLoss[B]().Forward(logProbs, targets).Item()),
		Manual:  float64(nn.ManualNLL(logProbs, targets).Item()),
		Slices:  slices,
	}
	r.MaxDiff = math.Max(math.Abs(r.Library-r.Manual), math.Max(math.Abs(r.Library-r.Slices), math.Abs(r.Manual-r.Slices)))
	return r, nil
}
