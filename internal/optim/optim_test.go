package optim_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/optim"
	"github.com/born-ml/digitgrad/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, b *cpu.CPUBackend, name string, vals ...float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(vals, tensor.Shape{len(vals)}, b)
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func setGrad[B tensor.Backend](p *nn.Parameter[B], vals ...float32) {
	p.ZeroGrad()
	g := tensor.MustRaw(tensor.Shape{len(vals)}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), vals)
	p.AccumulateGrad(g)
}

func TestSGD_Step(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 2, -1)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 0.1})

	setGrad(p, 1, -2)
	opt.Step()
	assert.InDeltaSlice(t, []float32{1.9, -0.8}, p.Tensor().Data(), 1e-6)
}

func TestSGD_Momentum(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 1)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	setGrad(p, 1)
	opt.Step() // v = 1, x = 0.9
	assert.InDelta(t, 0.9, float64(p.Tensor().Data()[0]), 1e-6)
	opt.Step() // v = 1.9, x = 0.71
	assert.InDelta(t, 0.71, float64(p.Tensor().Data()[0]), 1e-6)
}

func TestSGD_SkipsParametersWithoutGrad(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 3)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{})
	assert.Equal(t, float32(0.01), opt.GetLR(), "default learning rate")
	opt.Step()
	assert.Equal(t, []float32{3}, p.Tensor().Data())
}

func TestSGD_ZeroGradAndLR(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 1)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 0.5})
	setGrad(p, 1)
	opt.ZeroGrad()
	assert.Nil(t, p.Grad())

	opt.SetLR(0.25)
	assert.Equal(t, float32(0.25), opt.GetLR())
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 1, 2)
	params := []*nn.Parameter[*cpu.CPUBackend]{p}
	opt := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	assert.Empty(t, opt.StateDict())

	setGrad(p, 1, 1)
	opt.Step()
	state := opt.StateDict()
	require.Contains(t, state, "velocity.0")
	assert.Equal(t, []float32{1, 1}, state["velocity.0"].AsFloat32())

	restored := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.5})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, state["velocity.0"].AsFloat32(), restored.StateDict()["velocity.0"].AsFloat32())

	state["velocity.0"] = tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	assert.Error(t, restored.LoadStateDict(state))
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 1, 1)
	opt := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.AdamConfig{LR: 0.01})

	// After bias correction the first step is lr * sign(g).
	setGrad(p, 4, -0.5)
	opt.Step()
	assert.InDeltaSlice(t, []float32{0.99, 1.01}, p.Tensor().Data(), 1e-5)
	assert.Equal(t, 1, opt.Timestep())
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "x", 1, -1)
	opt := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.AdamConfig{LR: 0.1})
	for _, g := range [][]float32{{1, -2}, {0.5, 3}, {-1, 1}} {
		setGrad(p, g...)
		opt.Step()
	}
	state := opt.StateDict()
	require.Contains(t, state, "step")
	require.Contains(t, state, "m.0")
	require.Contains(t, state, "v.0")
	assert.Equal(t, []int32{3}, state["step"].AsInt32())

	// A copy that restored the state must take the same next step.
	q := param(t, b, "x", p.Tensor().Data()...)
	restored := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{q}, optim.AdamConfig{LR: 0.1})
	require.NoError(t, restored.LoadStateDict(state))
	assert.Equal(t, 3, restored.Timestep())

	setGrad(p, 2, 2)
	setGrad(q, 2, 2)
	opt.Step()
	restored.Step()
	assert.Equal(t, p.Tensor().Data(), q.Tensor().Data())

	fresh := param(t, b, "y", 1, 2, 3)
	bad := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{fresh}, optim.AdamConfig{})
	assert.ErrorContains(t, bad.LoadStateDict(state), "m.0")
}

func TestManualStep(t *testing.T) {
	b := cpu.New()
	p := param(t, b, "w", 1, 2, 3)
	q := param(t, b, "b", 5)
	setGrad(p, 1, 1, 1)

	n := optim.ManualStep([]*nn.Parameter[*cpu.CPUBackend]{p, q}, 0.5)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float32{0.5, 1.5, 2.5}, p.Tensor().Data())
	assert.Equal(t, []float32{5}, q.Tensor().Data())
}

func TestManualStep_MatchesSGD(t *testing.T) {
	b := cpu.New()
	a := param(t, b, "a", 0.3, -0.7, 1.1)
	c := param(t, b, "c", 0.3, -0.7, 1.1)
	setGrad(a, 0.2, 0.4, -0.6)
	setGrad(c, 0.2, 0.4, -0.6)

	optim.ManualStep([]*nn.Parameter[*cpu.CPUBackend]{a}, 0.003)
	optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{c}, optim.SGDConfig{LR: 0.003}).Step()
	assert.InDeltaSlice(t, a.Tensor().Data(), c.Tensor().Data(), 1e-7)
}

func TestParseKindAndNew(t *testing.T) {
	k, err := optim.ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, optim.KindSGD, k)
	_, err = optim.ParseKind("rmsprop")
	assert.Error(t, err)

	b := cpu.New()
	params := []*nn.Parameter[*cpu.CPUBackend]{param(t, b, "x", 1)}
	for _, kind := range []optim.Kind{optim.KindSGD, optim.KindAdam, optim.KindManual} {
		opt, err := optim.New(kind, params, 0.003, 0)
		require.NoError(t, err, kind)
		assert.Equal(t, float32(0.003), opt.GetLR(), kind)
	}
	_, err = optim.New(optim.Kind("bogus"), params, 0.1, 0)
	assert.Error(t, err)
}

// Fitting y = 3x - 1 with a single Linear layer drives the loss down with
// every optimizer.
func TestConvergence_LinearRegression(t *testing.T) {
	for _, kind := range []optim.Kind{optim.KindSGD, optim.KindAdam, optim.KindManual} {
		t.Run(string(kind), func(t *testing.T) {
			b := autodiff.New(cpu.New())
			rng := rand.New(rand.NewSource(1))
			layer := nn.NewLinear(1, 1, rng, b)
			lr := float32(0.1)
			if kind == optim.KindAdam {
				lr = 0.05
			}
			opt, err := optim.New(kind, layer.Parameters(), lr, 0)
			require.NoError(t, err)

			xs := []float32{-1, -0.5, 0, 0.5, 1}
			ys := make([]float32, len(xs))
			for i, x := range xs {
				ys[i] = 3*x - 1
			}
			x, err := tensor.FromSlice(xs, tensor.Shape{5, 1}, b)
			require.NoError(t, err)
			y, err := tensor.FromSlice(ys, tensor.Shape{5, 1}, b)
			require.NoError(t, err)

			tape := b.Tape()
			tape.StartRecording()
			var first, last float32
			for step := 0; step < 500; step++ {
				opt.ZeroGrad()
				tape.Clear()
				diff := layer.Forward(x).Sub(y)
				loss := diff.Mul(diff).Mean()
				nn.CollectGrads(layer.Parameters(), autodiff.Backward(loss, b))
				opt.Step()
				if step == 0 {
					first = loss.Item()
				}
				last = loss.Item()
			}
			assert.Less(t, last, first/100)
			assert.InDelta(t, 3, float64(layer.Weight().Tensor().Data()[0]), 0.1)
			assert.False(t, math.IsNaN(float64(last)))
		})
	}
}

var _ optim.Optimizer = (*optim.SGD[adBackend])(nil)
var _ optim.Optimizer = (*optim.Adam[adBackend])(nil)
var _ optim.Optimizer = (*optim.Manual[adBackend])(nil)
