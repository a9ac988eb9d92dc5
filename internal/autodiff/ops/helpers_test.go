package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/tensor"
)

func raw32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), cpu.New())
	require.NoError(t, err)
	return x.Raw()
}

func TestReduceBroadcast(t *testing.T) {
	b := cpu.New()
	g := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	tests := []struct {
		name   string
		target tensor.Shape
		want   []float32
	}{
		{"same shape", tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6}},
		{"leading dim dropped", tensor.Shape{3}, []float32{5, 7, 9}},
		{"row vector", tensor.Shape{1, 3}, []float32{5, 7, 9}},
		{"column vector", tensor.Shape{2, 1}, []float32{6, 15}},
		{"scalar", tensor.Shape{}, []float32{21}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := reduceBroadcast(g, tt.target, b)
			assert.Equal(t, tt.target, out.Shape())
			assert.Equal(t, tt.want, out.AsFloat32())
		})
	}
}

func TestExpand(t *testing.T) {
	b := cpu.New()
	out := expand(raw32(t, []float32{2}, 1, 1), tensor.Shape{2, 2}, b)
	assert.Equal(t, []float32{2, 2, 2, 2}, out.AsFloat32())
}

func TestNLLLossForward(t *testing.T) {
	logp := raw32(t, []float32{
		-0.1, -2.0, -3.0,
		-1.5, -0.5, -2.5,
	}, 2, 3)
	targets, err := tensor.FromSlice([]int32{0, 2}, tensor.Shape{2}, cpu.New())
	require.NoError(t, err)

	out := NLLLossForward(logp, targets.Raw())
	assert.Equal(t, tensor.Shape{}, out.Shape())
	assert.InDelta(t, (0.1+2.5)/2, out.AsFloat32()[0], 1e-6)

	grad := NewNLLLossOp(logp, targets.Raw(), out).Backward(raw32(t, []float32{1}), cpu.New())
	assert.Equal(t, []float32{-0.5, 0, 0, 0, 0, -0.5}, grad[0].AsFloat32())
}

func TestTransposeOp_InversePermutation(t *testing.T) {
	b := cpu.New()
	x := raw32(t, make([]float32, 24), 2, 3, 4)
	out := b.Transpose(x, 2, 0, 1)
	op := NewTransposeOp(x, []int{2, 0, 1}, out)

	g := op.Backward(tensor.OnesLike(out), b)[0]
	assert.Equal(t, tensor.Shape{2, 3, 4}, g.Shape())
}
