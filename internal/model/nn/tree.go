package nn

import (
	"sort"
	"strings"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// Tree is a flat, path-keyed collection of parameter tensors. Paths use "/"
// separators ("encoder/round0/radial/w0") so that subsystems can claim a
// prefix without coordinating beyond their own names. A Tree is what the
// optimizer updates, what checkpoints persist, and what every forward pass
// reads from.
type Tree struct {
	Params map[string]*Tensor
}

// NewTree returns an empty parameter tree.
func NewTree() *Tree {
	return &Tree{Params: make(map[string]*Tensor)}
}

// Set stores a tensor under the given path, replacing any previous entry.
func (t *Tree) Set(path string, tensor *Tensor) {
	t.Params[path] = tensor
}

// Get returns the tensor at path.
func (t *Tree) Get(path string) (*Tensor, error) {
	p, ok := t.Params[path]
	if !ok {
		return nil, errors.Newf(errors.CodeModelParamMissing, "parameter %q not found", path)
	}
	return p, nil
}

// Leaf pairs a parameter path with its tensor.
type Leaf struct {
	Path   string
	Tensor *Tensor
}

// Leaves returns every parameter sorted by path. The stable order is what
// lets optimizer state stay aligned with parameters across steps and across
// checkpoint reloads.
func (t *Tree) Leaves() []Leaf {
	paths := make([]string, 0, len(t.Params))
	for p := range t.Params {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	leaves := make([]Leaf, len(paths))
	for i, p := range paths {
		leaves[i] = Leaf{Path: p, Tensor: t.Params[p]}
	}
	return leaves
}

// NumParams returns the total scalar parameter count.
func (t *Tree) NumParams() int {
	n := 0
	for _, p := range t.Params {
		n += p.Size()
	}
	return n
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	c := NewTree()
	for path, p := range t.Params {
		c.Params[path] = p.Clone()
	}
	return c
}

// Prefixed returns the paths under a prefix, sorted. Useful for inspecting a
// subsystem's parameters in tests and debug logs.
func (t *Tree) Prefixed(prefix string) []string {
	var out []string
	for p := range t.Params {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Join builds a parameter path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
