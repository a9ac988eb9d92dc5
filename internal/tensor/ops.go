package tensor

func (t *Tensor[T, B]) wrap(raw *RawTensor) *Tensor[T, B] {
	return New[T](raw, t.backend)
}

// Add is element-wise addition with broadcasting:
//
//	h := x.MatMul(w.T()).Add(bias) // [64, 128] + [1, 128]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Add(t.raw, other.raw))
}

// Sub is element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Sub(t.raw, other.raw))
}

// Mul is element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Mul(t.raw, other.raw))
}

// Div is element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Div(t.raw, other.raw))
}

// MatMul multiplies two 2-D tensors.
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.MatMul(t.raw, other.raw))
}

// Reshape keeps the elements and changes the shape. One dimension may be -1
// and is inferred from the others.
func (t *Tensor[T, B]) Reshape(dims ...int) *Tensor[T, B] {
	return t.wrap(t.backend.Reshape(t.raw, InferShape(t.NumElements(), dims)))
}

// Transpose permutes dimensions; with no axes it reverses them.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return t.wrap(t.backend.Transpose(t.raw, axes...))
}

// T transposes a 2-D tensor.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() needs a 2-D tensor")
	}
	return t.Transpose(1, 0)
}

func (t *Tensor[T, B]) MulScalar(s float64) *Tensor[T, B] {
	return t.wrap(t.backend.MulScalar(t.raw, s))
}

func (t *Tensor[T, B]) AddScalar(s float64) *Tensor[T, B] {
	return t.wrap(t.backend.AddScalar(t.raw, s))
}

// Neg flips the sign.
func (t *Tensor[T, B]) Neg() *Tensor[T, B] {
	return t.MulScalar(-1)
}

func (t *Tensor[T, B]) Exp() *Tensor[T, B] { return t.wrap(t.backend.Exp(t.raw)) }
func (t *Tensor[T, B]) Log() *Tensor[T, B] { return t.wrap(t.backend.Log(t.raw)) }
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] { return t.wrap(t.backend.ReLU(t.raw)) }

// LogSoftmax returns log-probabilities along dim.
func (t *Tensor[T, B]) LogSoftmax(dim int) *Tensor[T, B] {
	return t.wrap(t.backend.LogSoftmax(t.raw, dim))
}

// Sum reduces every element to a scalar.
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	return t.wrap(t.backend.Sum(t.raw))
}

func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return t.wrap(t.backend.SumDim(t.raw, dim, keepDim))
}

func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return t.wrap(t.backend.MeanDim(t.raw, dim, keepDim))
}

// Mean averages every element into a scalar. It is expressed through
// Sum and MulScalar so that it differentiates without a dedicated op.
func (t *Tensor[T, B]) Mean() *Tensor[T, B] {
	return t.Sum().MulScalar(1 / float64(t.NumElements()))
}

// Argmax returns the int32 index of the largest value along dim.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int32, B] {
	return New[int32](t.backend.Argmax(t.raw, dim), t.backend)
}

// Gather selects one element per index along dim; see Backend.Gather.
func (t *Tensor[T, B]) Gather(dim int, index *Tensor[int32, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Gather(t.raw, dim, index.raw))
}

// InferShape resolves a single -1 entry in dims against n elements.
func InferShape(n int, dims []int) Shape {
	shape := make(Shape, len(dims))
	copy(shape, dims)
	unknown, known := -1, 1
	for i, d := range shape {
		if d == -1 {
			if unknown >= 0 {
				panic("reshape: only one dimension may be -1")
			}
			unknown = i
			continue
		}
		known *= d
	}
	if unknown >= 0 && known > 0 {
		shape[unknown] = n / known
	}
	return shape
}
