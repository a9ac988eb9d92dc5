package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() adBackend { return autodiff.New(cpu.New()) }

func fromSlice[T tensor.DType, B tensor.Backend](t *testing.T, b B, data []T, shape ...int) *tensor.Tensor[T, B] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape), b)
	require.NoError(t, err)
	return x
}

func randomLogProbs(t *testing.T, b adBackend, rng *rand.Rand, n, classes int) *tensor.Tensor[float32, adBackend] {
	t.Helper()
	return tensor.Randn[float32](tensor.Shape{n, classes}, rng, b).MulScalar(3).LogSoftmax(1)
}

func randomTargets(t *testing.T, b adBackend, rng *rand.Rand, n, classes int) *tensor.Tensor[int32, adBackend] {
	t.Helper()
	labels := make([]int32, n)
	for i := range labels {
		labels[i] = int32(rng.Intn(classes))
	}
	return fromSlice(t, b, labels, n)
}

func TestLinear_ForwardShapeAndValues(t *testing.T) {
	b := cpu.New()
	l := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), b)
	copy(l.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(l.Bias().Tensor().Data(), []float32{0.5, -1})

	x := fromSlice(t, b, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	y := l.Forward(x)
	require.Equal(t, tensor.Shape{2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float32{1.5, 4, 4.5, 10}, y.Data(), 1e-6)

	assert.Equal(t, 3, l.InFeatures())
	assert.Equal(t, 2, l.OutFeatures())
	assert.Len(t, l.Parameters(), 2)
	assert.Equal(t, "Linear(in_features=3, out_features=2)", l.String())
}

func TestInit_Bounds(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(7))
	w := nn.KaimingUniform(100, tensor.Shape{50, 100}, rng, b)
	bound := float32(1 / math.Sqrt(100))
	for _, v := range w.Data() {
		require.LessOrEqual(t, v, bound)
		require.GreaterOrEqual(t, v, -bound)
	}

	l := nn.NewLinearWithInit(10, 4, nn.InitXavier, rng, b)
	for _, v := range l.Bias().Tensor().Data() {
		assert.Zero(t, v)
	}

	_, err := nn.ParseInit("orthogonal")
	assert.Error(t, err)
	k, err := nn.ParseInit("")
	require.NoError(t, err)
	assert.Equal(t, nn.InitKaiming, k)
}

func TestFlatten(t *testing.T) {
	b := cpu.New()
	f := nn.NewFlatten[*cpu.CPUBackend]()
	x := tensor.Zeros[float32](tensor.Shape{4, 1, 28, 28}, b)
	assert.Equal(t, tensor.Shape{4, 784}, f.Forward(x).Shape())

	flat := tensor.Zeros[float32](tensor.Shape{4, 784}, b)
	assert.Same(t, flat, f.Forward(flat))
}

func TestClassifier_Layout(t *testing.T) {
	b := cpu.New()
	model, err := nn.NewClassifier(nn.DefaultClassifierConfig(), rand.New(rand.NewSource(1)), b)
	require.NoError(t, err)

	assert.Equal(t, 7, model.Len())
	params := model.Parameters()
	require.Len(t, params, 6)
	assert.Equal(t, 784*128+128+128*64+64+64*10+10, nn.CountParameters(params))

	x := tensor.Rand[float32](tensor.Shape{5, 784}, rand.New(rand.NewSource(2)), b)
	out := model.Forward(x)
	require.Equal(t, tensor.Shape{5, 10}, out.Shape())

	// Rows of exp(log-probabilities) sum to one.
	probs := nn.Probabilities(out)
	for i := 0; i < 5; i++ {
		var sum float64
		for _, p := range probs.Row(i) {
			sum += float64(p)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}

	keys := model.StateDict()
	assert.Contains(t, keys, "1.weight")
	assert.Contains(t, keys, "5.bias")
	assert.Len(t, keys, 6)
}

func TestClassifier_InvalidConfig(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	_, err := nn.NewClassifier(nn.ClassifierConfig{Inputs: 0, Classes: 10}, rng, b)
	assert.Error(t, err)
	_, err = nn.NewClassifier(nn.ClassifierConfig{Inputs: 4, Hidden: []int{0}, Classes: 10}, rng, b)
	assert.Error(t, err)
}

func TestSequential_LoadStateDict(t *testing.T) {
	b := cpu.New()
	cfg := nn.ClassifierConfig{Inputs: 4, Hidden: []int{3}, Classes: 2, LogSoftmax: true}
	src, err := nn.NewClassifier(cfg, rand.New(rand.NewSource(1)), b)
	require.NoError(t, err)
	dst, err := nn.NewClassifier(cfg, rand.New(rand.NewSource(2)), b)
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	for k, v := range src.StateDict() {
		assert.Equal(t, v.AsFloat32(), dst.StateDict()[k].AsFloat32(), k)
	}

	t.Run("missing key", func(t *testing.T) {
		state := src.StateDict()
		delete(state, "1.bias")
		assert.ErrorContains(t, dst.LoadStateDict(state), `missing "1.bias"`)
	})
	t.Run("unexpected key", func(t *testing.T) {
		state := src.StateDict()
		state["9.weight"] = tensor.MustRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
		assert.ErrorContains(t, dst.LoadStateDict(state), "unexpected keys 9.weight")
	})
	t.Run("shape mismatch", func(t *testing.T) {
		state := src.StateDict()
		state["1.bias"] = tensor.MustRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
		assert.ErrorContains(t, dst.LoadStateDict(state), "shape")
	})
	t.Run("dtype mismatch", func(t *testing.T) {
		state := src.StateDict()
		state["1.bias"] = tensor.MustRaw(tensor.Shape{3}, tensor.Float64, tensor.CPU)
		assert.ErrorContains(t, dst.LoadStateDict(state), "dtype")
	})
}

func TestManualNLL_MatchesLibrary(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{1, 7, 64} {
		logProbs := randomLogProbs(t, b, rng, n, 10)
		targets := randomTargets(t, b, rng, n, 10)

		manual := nn.ManualNLL(logProbs, targets).Item()
		library := nn.NewNLLLoss[adBackend]().Forward(logProbs, targets).Item()
		assert.InDelta(t, float64(library), float64(manual), 1e-6, "batch %d", n)

		rows := make([][]float32, n)
		for i := range rows {
			rows[i] = logProbs.Row(i)
		}
		value, err := nn.ManualNLLValue(rows, targets.Data())
		require.NoError(t, err)
		assert.InDelta(t, float64(library), value, 1e-6)
	}
}

func TestManualNLL_GradientsMatchLibrary(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	scores := tensor.Randn[float32](tensor.Shape{6, 5}, rng, cpu.New()).Data()
	labels := []int32{0, 4, 2, 2, 1, 3}

	grad := func(loss nn.Loss[adBackend]) []float32 {
		b := newBackend()
		b.Tape().StartRecording()
		x := fromSlice(t, b, append([]float32(nil), scores...), 6, 5)
		y := fromSlice(t, b, labels, 6)
		l := loss.Forward(x.LogSoftmax(1), y)
		g := autodiff.Grad(autodiff.Backward(l, b), x)
		require.NotNil(t, g)
		return g.Data()
	}
	assert.InDeltaSlice(t, grad(nn.NewNLLLoss[adBackend]()), grad(nn.NewManualNLLLoss[adBackend]()), 1e-6)
}

func TestCrossEntropy_EqualsLogSoftmaxPlusNLL(t *testing.T) {
	b := newBackend()
	rng := rand.New(rand.NewSource(5))
	logits := tensor.Randn[float32](tensor.Shape{8, 10}, rng, b)
	targets := randomTargets(t, b, rng, 8, 10)

	ce := nn.NewCrossEntropyLoss[adBackend]().Forward(logits, targets).Item()
	nll := nn.NewNLLLoss[adBackend]().Forward(logits.LogSoftmax(1), targets).Item()
	assert.InDelta(t, float64(nll), float64(ce), 1e-5)
}

func TestNLLLoss_PlainBackend(t *testing.T) {
	b := cpu.New()
	logProbs := fromSlice(t, b, []float32{float32(math.Log(0.5)), float32(math.Log(0.5))}, 1, 2)
	targets := fromSlice(t, b, []int32{1}, 1)
	loss := nn.NewNLLLoss[*cpu.CPUBackend]().Forward(logProbs, targets)
	assert.InDelta(t, math.Log(2), float64(loss.Item()), 1e-6)
	assert.InDelta(t, math.Log(2), float64(nn.ManualNLL(logProbs, targets).Item()), 1e-6)
}

func TestManualNLLValue_Errors(t *testing.T) {
	_, err := nn.ManualNLLValue([][]float32{{0, 0}}, []int32{0, 1})
	assert.Error(t, err)
	_, err = nn.ManualNLLValue(nil, nil)
	assert.Error(t, err)
	_, err = nn.ManualNLLValue([][]float32{{0, 0}}, []int32{2})
	assert.ErrorContains(t, err, "outside")
}

func TestManualNLL_PanicsOnShape(t *testing.T) {
	b := cpu.New()
	x := tensor.Zeros[float32](tensor.Shape{2, 3}, b)
	assert.Panics(t, func() { nn.ManualNLL(x, tensor.Zeros[int32](tensor.Shape{3}, b)) })
	assert.Panics(t, func() { nn.ManualNLL(x.Reshape(6), tensor.Zeros[int32](tensor.Shape{6}, b)) })
}

func TestParseLoss(t *testing.T) {
	for in, want := range map[string]nn.LossKind{
		"":              nn.LossNLL,
		"nll":           nn.LossNLL,
		"manual":        nn.LossManualNLL,
		"cross_entropy": nn.LossCrossEntropy,
	} {
		got, err := nn.ParseLoss(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := nn.ParseLoss("mse")
	assert.Error(t, err)
	assert.False(t, nn.LossCrossEntropy.WantsLogSoftmax())
	assert.True(t, nn.LossManualNLL.WantsLogSoftmax())
}

func TestAccuracyAndPredict(t *testing.T) {
	b := cpu.New()
	scores := fromSlice(t, b, []float32{
		0.1, 0.9, 0.0,
		0.8, 0.1, 0.1,
		0.2, 0.2, 0.6,
		0.5, 0.4, 0.1,
	}, 4, 3)
	targets := fromSlice(t, b, []int32{1, 0, 2, 1}, 4)

	assert.Equal(t, []int32{1, 0, 2, 0}, nn.Predict(scores))
	correct, acc := nn.Accuracy(scores, targets)
	assert.Equal(t, 3, correct)
	assert.InDelta(t, 0.75, acc, 1e-12)
}

func TestParameter_AccumulateGrad(t *testing.T) {
	b := cpu.New()
	p := nn.NewParameter("w", tensor.Zeros[float32](tensor.Shape{2}, b))
	assert.Nil(t, p.Grad())

	g := tensor.MustRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), []float32{1, 2})
	p.AccumulateGrad(g)
	p.AccumulateGrad(g)
	assert.Equal(t, []float32{2, 4}, p.Grad().Data())
	assert.Equal(t, []float32{1, 2}, g.AsFloat32(), "source gradient untouched")

	assert.Panics(t, func() { p.AccumulateGrad(tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)) })

	p.ZeroGrad()
	assert.Nil(t, p.Grad())
}

func TestCollectGrads_FromTape(t *testing.T) {
	b := newBackend()
	l := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), b)
	b.Tape().StartRecording()
	x := fromSlice(t, b, []float32{1, 2, 3}, 1, 3)
	loss := l.Forward(x).Sum()
	grads := autodiff.Backward(loss, b)

	assert.Equal(t, 2, nn.CollectGrads(l.Parameters(), grads))
	// d(sum(xWᵀ + b))/dW[j] = x, d/db = 1.
	assert.InDeltaSlice(t, []float32{1, 2, 3, 1, 2, 3}, l.Weight().Grad().Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1}, l.Bias().Grad().Data(), 1e-6)

	nn.ZeroGrad(l.Parameters())
	assert.Nil(t, l.Weight().Grad())
}

func TestFormatProbabilities(t *testing.T) {
	out := nn.FormatProbabilities([]float32{0.1, 0.7, 0.2})
	assert.Contains(t, out, "    1  0.7000  <")
	assert.Contains(t, out, "    0  0.1000\n")
}
