package cpu

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/digitgrad/internal/parallel"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// LogSoftmax computes x - logsumexp(x) along dim. The row maximum is
// subtracted before exponentiating so large logits do not overflow.
func (cpu *CPUBackend) LogSoftmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat("logsoftmax", x)
	dim = x.Shape().NormalizeDim(dim)
	outer, n, inner := split(x.Shape(), dim)
	out := cpu.alloc("logsoftmax", x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		logSoftmax(out.AsFloat32(), x.AsFloat32(), outer, n, inner, cpu.par, math32.Exp, math32.Log)
	case tensor.Float64:
		logSoftmax(out.AsFloat64(), x.AsFloat64(), outer, n, inner, cpu.par, math.Exp, math.Log)
	}
	return out
}

func logSoftmax[T ~float32 | ~float64](dst, src []T, outer, n, inner int, cfg parallel.Config, exp, log func(T) T) {
	parallel.For(outer*inner, func(k int) {
		o, j := k/inner, k%inner
		base := o*n*inner + j
		peak := src[base]
		for i := 1; i < n; i++ {
			peak = max(peak, src[base+i*inner])
		}
		var sum T
		for i := 0; i < n; i++ {
			sum += exp(src[base+i*inner] - peak)
		}
		// Shift first: peak + log(sum) would round away log(sum) for large peaks.
		logSum := log(sum)
		for i := 0; i < n; i++ {
			dst[base+i*inner] = (src[base+i*inner] - peak) - logSum
		}
	}, cfg)
}
