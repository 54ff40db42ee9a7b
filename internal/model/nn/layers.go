package nn

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dense layers
// ─────────────────────────────────────────────────────────────────────────────

// Linear is an affine map. It does not own its weights; it names them inside
// a Tree so the same layer definition can run against any parameter set.
type Linear struct {
	Path string
	In   int
	Out  int
}

// Init allocates and initializes the layer's weight and bias in the tree.
func (l Linear) Init(tree *Tree, rng *rand.Rand) {
	w := NewTensor(l.Out, l.In)
	w.XavierFill(rng, l.In, l.Out)
	tree.Set(Join(l.Path, "weight"), w)
	tree.Set(Join(l.Path, "bias"), NewTensor(l.Out))
}

// Apply computes w·x + b.
func (l Linear) Apply(tree *Tree, x []float64) ([]float64, error) {
	w, err := tree.Get(Join(l.Path, "weight"))
	if err != nil {
		return nil, err
	}
	b, err := tree.Get(Join(l.Path, "bias"))
	if err != nil {
		return nil, err
	}
	if err := w.CheckShape(l.Out, l.In); err != nil {
		return nil, err
	}
	if len(x) != l.In {
		return nil, errors.Newf(errors.CodeModelShapeMismatch,
			"linear %q input has %d entries, expected %d", l.Path, len(x), l.In)
	}
	out := make([]float64, l.Out)
	for i := 0; i < l.Out; i++ {
		v := b.Data[i]
		row := w.Data[i*l.In : (i+1)*l.In]
		for j, xj := range x {
			v += row[j] * xj
		}
		out[i] = v
	}
	return out, nil
}

// MLP is a stack of Linear layers with SiLU activations between them (none
// after the last layer).
type MLP struct {
	Path  string
	Sizes []int // [in, hidden..., out]
}

func (m MLP) layers() []Linear {
	ls := make([]Linear, len(m.Sizes)-1)
	for i := range ls {
		ls[i] = Linear{Path: Join(m.Path, "layer"+strconv.Itoa(i)), In: m.Sizes[i], Out: m.Sizes[i+1]}
	}
	return ls
}

// Init allocates all layer parameters.
func (m MLP) Init(tree *Tree, rng *rand.Rand) {
	for _, l := range m.layers() {
		l.Init(tree, rng)
	}
}

// Apply runs the stack.
func (m MLP) Apply(tree *Tree, x []float64) ([]float64, error) {
	ls := m.layers()
	for i, l := range ls {
		var err error
		x, err = l.Apply(tree, x)
		if err != nil {
			return nil, err
		}
		if i < len(ls)-1 {
			for j := range x {
				x[j] = SiLU(x[j])
			}
		}
	}
	return x, nil
}

// Embed is a lookup table mapping a small integer vocabulary to dense
// vectors. Species embeddings use it.
type Embed struct {
	Path  string
	Vocab int
	Dim   int
}

// Init allocates the embedding table.
func (e Embed) Init(tree *Tree, rng *rand.Rand) {
	w := NewTensor(e.Vocab, e.Dim)
	w.NormalFill(rng, 1.0/math.Sqrt(float64(e.Dim)))
	tree.Set(Join(e.Path, "table"), w)
}

// Apply returns the row for index i.
func (e Embed) Apply(tree *Tree, i int) ([]float64, error) {
	w, err := tree.Get(Join(e.Path, "table"))
	if err != nil {
		return nil, err
	}
	if err := w.CheckShape(e.Vocab, e.Dim); err != nil {
		return nil, err
	}
	if i < 0 || i >= e.Vocab {
		return nil, errors.Newf(errors.CodeModelShapeMismatch,
			"embed %q index %d out of vocabulary %d", e.Path, i, e.Vocab)
	}
	out := make([]float64, e.Dim)
	copy(out, w.Data[i*e.Dim:(i+1)*e.Dim])
	return out, nil
}

// SiLU is x·sigmoid(x).
func SiLU(x float64) float64 {
	return x / (1 + math.Exp(-x))
}
