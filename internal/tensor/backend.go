package tensor

// Backend performs the arithmetic behind Tensor methods.
//
// Every method returns a new RawTensor unless the left operand is unique, in
// which case a backend may reuse its buffer. Programmer errors (mismatched
// shapes, wrong dtypes, out-of-range indices) panic.
//
// Implementations:
//   - cpu.CPUBackend: gonum BLAS matmul, parallel row kernels
//   - autodiff.AutodiffBackend: decorates another backend and records a tape
type Backend interface {
	// Element-wise with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2-D tensors: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor

	MulScalar(x *RawTensor, s float64) *RawTensor
	AddScalar(x *RawTensor, s float64) *RawTensor

	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// LogSoftmax normalizes along dim so that exp of the result sums to one.
	LogSoftmax(x *RawTensor, dim int) *RawTensor

	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	// Argmax returns int32 indices of the maximum along dim (dim removed).
	Argmax(x *RawTensor, dim int) *RawTensor

	// Gather picks x[..., index[...], ...] along dim. index is int32 and has
	// the same rank as x.
	Gather(x *RawTensor, dim int, index *RawTensor) *RawTensor

	Name() string
	Device() Device
}
