package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/tensor"
)

type f64 = tensor.Tensor[float64, adBackend]

// project collapses y to a scalar with fixed pseudo-random weights so every
// output element contributes a distinct amount to the gradient.
func project(b adBackend, y *f64) *f64 {
	w := tensor.Uniform[float64](y.Shape(), 0.5, 1.5, rand.New(rand.NewSource(99)), b)
	return y.Mul(w).Sum()
}

// checkGradient compares the tape gradient of project(f(x)) at x0 with a
// central finite difference.
func checkGradient(t *testing.T, shape tensor.Shape, x0 []float64, f func(b adBackend, x *f64) *f64) {
	t.Helper()
	b := newBackend()

	eval := func(xs []float64) float64 {
		var out float64
		b.Tape().NoGrad(func() {
			x, err := tensor.FromSlice(append([]float64(nil), xs...), shape, b)
			require.NoError(t, err)
			out = project(b, f(b, x)).Item()
		})
		return out
	}
	numeric := fd.Gradient(nil, eval, x0, &fd.Settings{Formula: fd.Central, Step: 1e-6})

	b.Tape().StartRecording()
	x, err := tensor.FromSlice(append([]float64(nil), x0...), shape, b)
	require.NoError(t, err)
	loss := project(b, f(b, x))
	grad := autodiff.Grad(autodiff.Backward(loss, b), x)
	require.NotNil(t, grad, "no gradient reached the input")
	require.Equal(t, shape, grad.Shape())

	assert.InDeltaSlice(t, numeric, grad.Data(), 1e-5)
}

func randomInput(seed int64, n int, lo, hi float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

func constant(t *testing.T, b adBackend, seed int64, shape ...int) *f64 {
	t.Helper()
	c, err := tensor.FromSlice(randomInput(seed, tensor.Shape(shape).NumElements(), 0.5, 2), tensor.Shape(shape), b)
	require.NoError(t, err)
	return c
}

func TestGradientCheck_ElementWise(t *testing.T) {
	shape := tensor.Shape{3, 4}
	x0 := randomInput(1, 12, -2, 2)

	cases := map[string]func(b adBackend, x *f64) *f64{
		"add":        func(b adBackend, x *f64) *f64 { return x.Add(constant(t, b, 2, 3, 4)) },
		"add row":    func(b adBackend, x *f64) *f64 { return constant(t, b, 2, 1, 4).Add(x) },
		"sub":        func(b adBackend, x *f64) *f64 { return constant(t, b, 2, 4).Sub(x) },
		"mul":        func(b adBackend, x *f64) *f64 { return x.Mul(constant(t, b, 3, 3, 1)) },
		"mul self":   func(_ adBackend, x *f64) *f64 { return x.Mul(x) },
		"div num":    func(b adBackend, x *f64) *f64 { return x.Div(constant(t, b, 4, 3, 4)) },
		"mul scalar": func(_ adBackend, x *f64) *f64 { return x.MulScalar(-2.5) },
		"add scalar": func(_ adBackend, x *f64) *f64 { return x.AddScalar(7).Mul(x) },
		"exp":        func(_ adBackend, x *f64) *f64 { return x.Exp() },
		"relu":       func(_ adBackend, x *f64) *f64 { return x.ReLU() },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			checkGradient(t, shape, x0, f)
		})
	}
}

func TestGradientCheck_PositiveDomain(t *testing.T) {
	shape := tensor.Shape{2, 3}
	x0 := randomInput(5, 6, 0.5, 3)

	t.Run("log", func(t *testing.T) {
		checkGradient(t, shape, x0, func(_ adBackend, x *f64) *f64 { return x.Log() })
	})
	t.Run("div denominator", func(t *testing.T) {
		checkGradient(t, shape, x0, func(b adBackend, x *f64) *f64 {
			return constant(t, b, 6, 2, 3).Div(x)
		})
	})
}

func TestGradientCheck_Shapes(t *testing.T) {
	shape := tensor.Shape{2, 3}
	x0 := randomInput(7, 6, -1, 1)

	cases := map[string]func(b adBackend, x *f64) *f64{
		"matmul left":   func(b adBackend, x *f64) *f64 { return x.MatMul(constant(t, b, 8, 3, 4)) },
		"matmul right":  func(b adBackend, x *f64) *f64 { return constant(t, b, 8, 5, 2).MatMul(x) },
		"transpose":     func(_ adBackend, x *f64) *f64 { return x.T() },
		"reshape":       func(_ adBackend, x *f64) *f64 { return x.Reshape(3, 2) },
		"sum":           func(_ adBackend, x *f64) *f64 { return x.Sum() },
		"sum dim 0":     func(_ adBackend, x *f64) *f64 { return x.SumDim(0, false) },
		"sum dim keep":  func(_ adBackend, x *f64) *f64 { return x.SumDim(1, true) },
		"mean dim":      func(_ adBackend, x *f64) *f64 { return x.MeanDim(-1, false) },
		"mean":          func(_ adBackend, x *f64) *f64 { return x.Mean() },
		"log softmax":   func(_ adBackend, x *f64) *f64 { return x.LogSoftmax(1) },
		"log softmax 0": func(_ adBackend, x *f64) *f64 { return x.LogSoftmax(0) },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			checkGradient(t, shape, x0, f)
		})
	}
}

func TestGradientCheck_Gather(t *testing.T) {
	checkGradient(t, tensor.Shape{3, 4}, randomInput(11, 12, -1, 1), func(b adBackend, x *f64) *f64 {
		// Row 2 picks column 1 twice, exercising the accumulating scatter.
		idx := fromSlice(t, b, []int32{0, 3, 2, 2, 1, 1}, 3, 2)
		return x.Gather(1, idx)
	})
}

func TestGradientCheck_Losses(t *testing.T) {
	shape := tensor.Shape{4, 5}
	x0 := randomInput(13, 20, -3, 3)
	targets := []int32{4, 0, 2, 2}

	t.Run("nll on log softmax", func(t *testing.T) {
		checkGradient(t, shape, x0, func(b adBackend, x *f64) *f64 {
			y := fromSlice(t, b, targets, 4)
			return tensor.New[float64](b.NLLLoss(x.LogSoftmax(1).Raw(), y.Raw()), b)
		})
	})
	t.Run("cross entropy", func(t *testing.T) {
		checkGradient(t, shape, x0, func(b adBackend, x *f64) *f64 {
			y := fromSlice(t, b, targets, 4)
			return tensor.New[float64](b.CrossEntropy(x.Raw(), y.Raw()), b)
		})
	})
}

func TestGradientCheck_TwoLayerNetwork(t *testing.T) {
	// logp = log_softmax(relu(x @ W1ᵀ + b1) @ W2ᵀ + b2), gradient w.r.t. x.
	checkGradient(t, tensor.Shape{3, 6}, randomInput(17, 18, -1, 1), func(b adBackend, x *f64) *f64 {
		w1 := constant(t, b, 18, 5, 6).AddScalar(-1.2)
		b1 := constant(t, b, 19, 5).AddScalar(-1)
		w2 := constant(t, b, 20, 4, 5).AddScalar(-1.2)
		b2 := constant(t, b, 21, 4)
		h := x.MatMul(w1.T()).Add(b1).ReLU()
		return h.MatMul(w2.T()).Add(b2).LogSoftmax(1)
	})
}

func TestCrossEntropyMatchesComposedLoss(t *testing.T) {
	b := newBackend()
	logits := fromSlice(t, b, randomInput(23, 12, -4, 4), 3, 4)
	y := fromSlice(t, b, []int32{3, 1, 0}, 3)

	fused := b.CrossEntropy(logits.Raw(), y.Raw()).AsFloat64()[0]
	composed := b.NLLLoss(logits.LogSoftmax(1).Raw(), y.Raw()).AsFloat64()[0]
	assert.InDelta(t, composed, fused, 1e-12)
}

func TestLosses_RejectBadTargets(t *testing.T) {
	b := newBackend()
	logp := fromSlice(t, b, make([]float32, 6), 2, 3)

	assert.Panics(t, func() { b.NLLLoss(logp.Raw(), fromSlice(t, b, []int32{0, 3}, 2).Raw()) })
	assert.Panics(t, func() { b.NLLLoss(logp.Raw(), fromSlice(t, b, []int32{0}, 1).Raw()) })
	assert.Panics(t, func() { b.CrossEntropy(logp.Raw(), logp.Raw()) })
}
