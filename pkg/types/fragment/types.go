// Package fragment defines the molecular-fragment data model shared by every
// layer of MolForge-Engine: atoms, teacher-forcing labels, fragments, and the
// padded batch container consumed by the model core. No model logic lives
// here, only plain data types and their structural validation, so the package
// is safe to import from any layer without creating circular dependencies.
package fragment

import (
	"math"
)

// ─────────────────────────────────────────────────────────────────────────────
// Vec3 — 3D position / offset vector
// ─────────────────────────────────────────────────────────────────────────────

// Vec3 is a 3-component vector in Å. It is a value type; all operations
// return new values and never mutate the receiver.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + u.
func (v Vec3) Add(u Vec3) Vec3 { return Vec3{v.X + u.X, v.Y + u.Y, v.Z + u.Z} }

// Sub returns v - u.
func (v Vec3) Sub(u Vec3) Vec3 { return Vec3{v.X - u.X, v.Y - u.Y, v.Z - u.Z} }

// Scale returns s·v.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{s * v.X, s * v.Y, s * v.Z} }

// Dot returns the inner product v·u.
func (v Vec3) Dot(u Vec3) float64 { return v.X*u.X + v.Y*u.Y + v.Z*u.Z }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged; callers that require a direction must check Norm first.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// ─────────────────────────────────────────────────────────────────────────────
// Element vocabulary
// ─────────────────────────────────────────────────────────────────────────────

// DefaultElements is the fixed element vocabulary of the QM9 corpus, in
// species-index order. Species indices are drawn from this vocabulary
// everywhere in the system unless the configuration overrides it.
var DefaultElements = []string{"H", "C", "N", "O", "F"}

// ─────────────────────────────────────────────────────────────────────────────
// Globals — per-graph teacher-forcing label
// ─────────────────────────────────────────────────────────────────────────────

// Globals holds the ground-truth next-step label of a training fragment.
//
// When Stop is true the fragment denotes a completed molecule and the
// TargetSpecies / TargetPosition fields are undefined; no component may
// read them in that case.
type Globals struct {
	// TargetSpecies is the species index of the atom to add next.
	TargetSpecies int

	// TargetPosition is the offset of the next atom relative to the focus
	// atom (node 0 by convention).
	TargetPosition Vec3

	// Stop indicates that no further atom should be added.
	Stop bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Fragment — one partially built molecule plus its label
// ─────────────────────────────────────────────────────────────────────────────

// Fragment is a partially built molecule: parallel per-node arrays, a set of
// directed sender→receiver edges used by message passing, and the per-graph
// Globals label.
//
// Hard convention: node 0 is the designated focus node for teacher-forced
// fragments. Dataset construction relabels atoms so this always holds.
type Fragment struct {
	// Species holds one vocabulary index per node.
	Species []int

	// Positions holds one position per node, parallel to Species.
	Positions []Vec3

	// Senders and Receivers are parallel arrays of node indices; each pair
	// denotes one directed neighbour/bond relation.
	Senders   []int
	Receivers []int

	// Globals is the teacher-forcing label for this fragment.
	Globals Globals
}

// NumNodes returns the number of atoms in the fragment.
func (f *Fragment) NumNodes() int { return len(f.Species) }

// NumEdges returns the number of directed edges in the fragment.
func (f *Fragment) NumEdges() int { return len(f.Senders) }
