package nn

import (
	"math"
	"math/rand"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// Tensor is a dense float64 array with an explicit shape. The model stores
// every learnable parameter as a Tensor inside a Tree so that optimizers can
// walk the full parameter set without knowing the architecture.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zero tensor with the given shape.
func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, size)}
}

// Size returns the total number of elements.
func (t *Tensor) Size() int { return len(t.Data) }

// At2 reads element (i, j) of a rank-2 tensor.
func (t *Tensor) At2(i, j int) float64 { return t.Data[i*t.Shape[1]+j] }

// CheckShape verifies the tensor has the expected shape.
func (t *Tensor) CheckShape(shape ...int) error {
	if len(t.Shape) != len(shape) {
		return errors.Newf(errors.CodeModelShapeMismatch,
			"tensor rank %d, expected %d", len(t.Shape), len(shape))
	}
	for i, s := range shape {
		if t.Shape[i] != s {
			return errors.Newf(errors.CodeModelShapeMismatch,
				"tensor shape %v, expected %v", t.Shape, shape)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := NewTensor(t.Shape...)
	copy(c.Data, t.Data)
	return c
}

// XavierFill initializes the tensor with the Glorot uniform scheme for a
// layer with the given fan-in and fan-out.
func (t *Tensor) XavierFill(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// NormalFill initializes the tensor with zero-mean Gaussian entries.
func (t *Tensor) NormalFill(rng *rand.Rand, stddev float64) {
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64() * stddev
	}
}
