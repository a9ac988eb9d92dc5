package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Init selects how Linear weights are drawn.
type Init int

const (
	// InitKaiming draws weights and biases from U(-1/sqrt(fanIn), 1/sqrt(fanIn)),
	// the default for linear layers in PyTorch.
	InitKaiming Init = iota
	// InitXavier draws weights from U(-sqrt(6/(fanIn+fanOut)), +...) and
	// zeroes biases.
	InitXavier
)

func (i Init) String() string {
	switch i {
	case InitKaiming:
		return "kaiming"
	case InitXavier:
		return "xavier"
	}
	return fmt.Sprintf("Init(%d)", int(i))
}

// ParseInit accepts the names printed by Init.String.
func ParseInit(s string) (Init, error) {
	switch s {
	case "kaiming", "":
		return InitKaiming, nil
	case "xavier":
		return InitXavier, nil
	}
	return 0, fmt.Errorf("unknown init %q (want kaiming or xavier)", s)
}

// KaimingUniform returns U(-1/sqrt(fanIn), 1/sqrt(fanIn)) samples.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := 1 / math.Sqrt(float64(fanIn))
	return tensor.Uniform[float32](shape, -bound, bound, rng, backend)
}

// Xavier returns Glorot-uniform samples.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6 / float64(fanIn+fanOut))
	return tensor.Uniform[float32](shape, -bound, bound, rng, backend)
}
