package nn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/digitgrad/internal/tensor"
)

// Sequential feeds each module's output into the next.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

// Parameters concatenates the parameters of every module in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

func (s *Sequential[B]) Len() int { return len(s.modules) }

// Module returns the i-th stage.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.modules) {
		panic(fmt.Sprintf("sequential: module index %d out of range [0, %d)", i, len(s.modules)))
	}
	return s.modules[i]
}

// StateDict maps "<index>.<param>" (for example "0.weight", "2.bias") to the
// live parameter tensors. Stateless modules contribute nothing but still
// consume an index, so keys line up with Module(i).
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		for _, p := range m.Parameters() {
			state[fmt.Sprintf("%d.%s", i, p.Name())] = p.Tensor().Raw()
		}
	}
	return state
}

// LoadStateDict copies tensors into the existing parameters. Every parameter
// must be present with its exact shape and float32 dtype, and unknown keys
// are rejected: loading never resizes a layer.
func (s *Sequential[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	used := make(map[string]bool, len(state))
	for i, m := range s.modules {
		for _, p := range m.Parameters() {
			key := fmt.Sprintf("%d.%s", i, p.Name())
			raw, ok := state[key]
			if !ok {
				return fmt.Errorf("state dict: missing %q", key)
			}
			if !raw.Shape().Equal(p.Tensor().Shape()) {
				return fmt.Errorf("state dict: %q has shape %v, model expects %v", key, raw.Shape(), p.Tensor().Shape())
			}
			if raw.DType() != tensor.Float32 {
				return fmt.Errorf("state dict: %q has dtype %s, model expects float32", key, raw.DType())
			}
			copy(p.Tensor().Data(), raw.AsFloat32())
			used[key] = true
		}
	}
	var extra []string
	for key := range state {
		if !used[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("state dict: unexpected keys %s", strings.Join(extra, ", "))
	}
	return nil
}

// String prints one stage per line, PyTorch style.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, m)
	}
	sb.WriteString(")")
	return sb.String()
}
