// Package training drives the optimization loop: gradient estimation over
// the parameter tree, Adam updates, and checkpointing of the run state.
package training

import (
	"math"
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Gradient — per-parameter gradient aligned with Tree leaves
// ─────────────────────────────────────────────────────────────────────────────

// Gradient maps parameter paths to per-entry gradient slices, matching the
// flat layout of the corresponding tensors.
type Gradient map[string][]float64

// LossFunc evaluates the training loss for one parameter set.
type LossFunc func(tree *nn.Tree) (float64, error)

// ─────────────────────────────────────────────────────────────────────────────
// SPSA — simultaneous-perturbation gradient estimation
// ─────────────────────────────────────────────────────────────────────────────

// SPSA estimates gradients from two loss evaluations per step: every
// parameter is perturbed simultaneously by a random sign times the
// perturbation size, and the central difference along that direction is
// projected back onto each coordinate. The forward pass is all the model
// exposes, so this replaces backpropagation at the cost of noisier updates.
type SPSA struct {
	// Perturbation is the magnitude c of the simultaneous perturbation.
	Perturbation float64
}

// Estimate returns a gradient estimate for tree under lossFn. The estimate
// is deterministic in rng.
func (s SPSA) Estimate(tree *nn.Tree, rng *rand.Rand, lossFn LossFunc) (Gradient, float64, error) {
	if s.Perturbation <= 0 {
		return nil, 0, errors.Newf(errors.CodeModelConfigInvalid,
			"spsa perturbation must be positive, got %v", s.Perturbation)
	}

	leaves := tree.Leaves()
	deltas := make(map[string][]float64, len(leaves))
	plus := tree.Clone()
	minus := tree.Clone()

	for _, leaf := range leaves {
		delta := make([]float64, len(leaf.Tensor.Data))
		pData := mustGet(plus, leaf.Path).Data
		mData := mustGet(minus, leaf.Path).Data
		for i := range delta {
			sign := 1.0
			if rng.Intn(2) == 0 {
				sign = -1.0
			}
			delta[i] = sign
			pData[i] += s.Perturbation * sign
			mData[i] -= s.Perturbation * sign
		}
		deltas[leaf.Path] = delta
	}

	lossPlus, err := lossFn(plus)
	if err != nil {
		return nil, 0, err
	}
	lossMinus, err := lossFn(minus)
	if err != nil {
		return nil, 0, err
	}

	// For ±1 perturbation signs, 1/delta_i equals delta_i.
	scale := (lossPlus - lossMinus) / (2 * s.Perturbation)
	grads := make(Gradient, len(leaves))
	for path, delta := range deltas {
		g := make([]float64, len(delta))
		for i, d := range delta {
			g[i] = scale * d
		}
		grads[path] = g
	}
	return grads, (lossPlus + lossMinus) / 2, nil
}

func mustGet(tree *nn.Tree, path string) *nn.Tensor {
	tensor, err := tree.Get(path)
	if err != nil {
		panic(err)
	}
	return tensor
}

// ─────────────────────────────────────────────────────────────────────────────
// Adam
// ─────────────────────────────────────────────────────────────────────────────

// Adam applies bias-corrected adaptive moment updates to a parameter tree.
// Moment state is keyed by parameter path, so trees with identical layouts
// can be swapped between steps (e.g. after a checkpoint restore).
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m    map[string][]float64
	v    map[string][]float64
}

// NewAdam returns an optimizer with zeroed moment state.
func NewAdam(learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      epsilon,
		m:            make(map[string][]float64),
		v:            make(map[string][]float64),
	}
}

// Step applies one update to tree in place.
func (a *Adam) Step(tree *nn.Tree, grads Gradient) error {
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for _, leaf := range tree.Leaves() {
		grad, ok := grads[leaf.Path]
		if !ok {
			return errors.Newf(errors.CodeModelParamMissing,
				"gradient missing for parameter %q", leaf.Path)
		}
		data := leaf.Tensor.Data
		if len(grad) != len(data) {
			return errors.Newf(errors.CodeModelShapeMismatch,
				"gradient for %q has %d entries, parameter has %d",
				leaf.Path, len(grad), len(data))
		}

		m := a.moment(a.m, leaf.Path, len(data))
		v := a.moment(a.v, leaf.Path, len(data))
		for i := range data {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*grad[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*grad[i]*grad[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			data[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
	return nil
}

// StepCount returns the number of updates applied so far.
func (a *Adam) StepCount() int { return a.step }

func (a *Adam) moment(store map[string][]float64, path string, size int) []float64 {
	if s, ok := store[path]; ok && len(s) == size {
		return s
	}
	s := make([]float64, size)
	store[path] = s
	return s
}
