package model

import (
	"math"

	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// ─────────────────────────────────────────────────────────────────────────────
// Training loss
// ─────────────────────────────────────────────────────────────────────────────

// LossParts breaks the training objective into its three terms, each already
// averaged over the graphs that contribute to it.
type LossParts struct {
	Focus    float64
	Species  float64
	Position float64
}

// Total sums the terms.
func (p LossParts) Total() float64 { return p.Focus + p.Species + p.Position }

// Loss computes the teacher-forced negative log-likelihood of a batch. The
// focus term covers every graph (stopped graphs must put their mass on the
// stop channel, others on node 0). Species and position terms cover only the
// graphs that actually add an atom.
func (m *Model) Loss(tree *nn.Tree, b *fragment.Batch) (LossParts, error) {
	out, err := m.Predict(tree, b, ModeTraining, nil)
	if err != nil {
		return LossParts{}, err
	}

	var parts LossParts
	numGraphs := b.NumGraphs()
	active := 0

	for g := 0; g < numGraphs; g++ {
		dist := out.FocusDists[g]
		if b.Globals[g].Stop {
			parts.Focus += nll(dist.Stop)
			continue
		}
		parts.Focus += nll(dist.NodeProbs[0])
		active++

		parts.Species += speciesNLL(out.SpeciesLogits[g], b.Globals[g].TargetSpecies)

		pl, err := m.positionNLL(out.Position[g], b.Globals[g].TargetPosition)
		if err != nil {
			return LossParts{}, err
		}
		parts.Position += pl
	}

	parts.Focus /= float64(numGraphs)
	if active > 0 {
		parts.Species /= float64(active)
		parts.Position /= float64(active)
	}
	return parts, nil
}

func nll(p float64) float64 {
	const floor = 1e-300
	if p < floor {
		p = floor
	}
	return -math.Log(p)
}

func speciesNLL(logits []float64, target int) float64 {
	return nn.LogSumExp(logits) - logits[target]
}

// positionNLL scores the target offset against the predicted distribution
// over (radius bin × direction). The true radius is smeared into a Gaussian
// over the radius bins; the direction enters as a point evaluation of the
// angular signal. The log-partition runs over the full lattice with
// quadrature weights, the same normalization sampling uses.
func (m *Model) positionNLL(pos *heads.PositionOutput, target fragment.Vec3) (float64, error) {
	r := target.Norm()
	if r <= 0 {
		return 0, errors.New(errors.CodeGraphMalformed,
			"target position coincides with the focus node")
	}
	dir := target.Scale(1 / r)
	dirBasis := irreps.EvalBasis(dir.X, dir.Y, dir.Z, m.cfg.Encoder.LMax)

	// Gaussian radial target, normalized over the bins.
	weights := make([]float64, len(m.radii))
	var wSum float64
	inv2v := 1 / (2 * m.cfg.RadiusRBFVariance)
	for i, rc := range m.radii {
		d := rc - r
		weights[i] = math.Exp(-d * d * inv2v)
		wSum += weights[i]
	}
	if !(wSum > 0) {
		// The target radius is far outside the bin range; fall back to the
		// nearest bin.
		nearest := 0
		best := math.Abs(m.radii[0] - r)
		for i, rc := range m.radii {
			if d := math.Abs(rc - r); d < best {
				best, nearest = d, i
			}
		}
		weights[nearest] = 1
		wSum = 1
	}

	// Cross entropy between the smeared target and the predicted lattice
	// distribution: logZ - Σ_r q_r · logit(r, trueDir).
	var expected float64
	for i, w := range weights {
		if w == 0 {
			continue
		}
		expected += (w / wSum) * pos.LogValue(i, dirBasis)
	}

	logs := make([]float64, 0, len(m.radii)*m.grid.NumCells())
	for i := range m.radii {
		for bIdx := 0; bIdx < m.grid.ResBeta; bIdx++ {
			lw := math.Log(m.grid.QuadWeight(bIdx))
			for a := 0; a < m.grid.ResAlpha; a++ {
				logs = append(logs, pos.LogValue(i, m.grid.Basis(bIdx, a))+lw)
			}
		}
	}
	logZ := nn.LogSumExp(logs)
	return logZ - expected, nil
}
