package model

import (
	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/internal/model/sampler"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// Mode selects how Predict resolves the per-step decisions.
type Mode int

const (
	// ModeTraining runs every head unconditionally against the teacher-forced
	// targets carried in the batch; nothing is sampled.
	ModeTraining Mode = iota
	// ModeEvaluation samples focus, species, and position from the predicted
	// distributions using per-graph random sub-streams.
	ModeEvaluation
)

// Output carries everything one forward pass produces. Distribution fields
// are filled in both modes; the realized decision fields (Focus, Species,
// Positions, Stopped) are only meaningful in evaluation mode.
type Output struct {
	NodeLogits []float64
	StopLogits []float64
	FocusDists []sampler.FocusDistribution

	// SpeciesLogits and Position are indexed by graph. In training mode they
	// condition on node 0 of each graph and the graph's target species; in
	// evaluation mode, on the sampled focus and species.
	SpeciesLogits [][]float64
	Position      []*heads.PositionOutput

	// Realized decisions, evaluation mode only.
	Focus     []int            // global node index, -1 for stopped graphs
	Species   []int            // -1 for stopped graphs
	Positions []fragment.Vec3  // absolute placement, zero for stopped graphs
	Stopped   []bool
	StopProbs []float64
}

// Predict runs one forward pass over a batch. Evaluation mode requires a
// random stream; each graph derives its own sub-streams so results do not
// depend on batch composition order.
func (m *Model) Predict(tree *nn.Tree, b *fragment.Batch, mode Mode, stream *sampler.Stream) (*Output, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if mode == ModeEvaluation && stream == nil {
		return nil, errors.New(errors.CodeSampleRNGMissing,
			"evaluation mode requires a random stream")
	}

	feats, err := m.enc.Apply(tree, b)
	if err != nil {
		return nil, err
	}

	out := &Output{}
	out.NodeLogits, out.StopLogits, err = m.focus.Apply(tree, feats, b)
	if err != nil {
		return nil, err
	}
	out.FocusDists = sampler.SegmentFocusSoftmax(out.NodeLogits, out.StopLogits, b)

	numGraphs := b.NumGraphs()
	out.StopProbs = make([]float64, numGraphs)
	for g := range out.FocusDists {
		out.StopProbs[g] = out.FocusDists[g].Stop
	}

	if mode == ModeTraining {
		return m.predictTraining(tree, b, feats, out)
	}
	return m.predictEvaluation(tree, b, feats, out, stream)
}

// predictTraining conditions every head on the teacher-forced targets: the
// focus is node 0 of each graph and the species is the graph's target.
// Stopped graphs still flow through with a placeholder species so the pass
// stays unconditional; the loss masks their species and position terms.
func (m *Model) predictTraining(tree *nn.Tree, b *fragment.Batch, feats *irreps.NodeFeatures, out *Output) (*Output, error) {
	focusNodes := b.FirstNodeIndices()
	targets := make([]int, b.NumGraphs())
	for g := range targets {
		if b.Globals[g].Stop {
			targets[g] = 0
		} else {
			targets[g] = b.Globals[g].TargetSpecies
		}
	}

	var err error
	out.SpeciesLogits, err = m.species.Apply(tree, feats, focusNodes)
	if err != nil {
		return nil, err
	}
	out.Position, err = m.posHead.Apply(tree, feats, focusNodes, targets)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// predictEvaluation samples the three decisions per graph, deriving one
// sub-stream per graph and per decision.
func (m *Model) predictEvaluation(tree *nn.Tree, b *fragment.Batch, feats *irreps.NodeFeatures, out *Output, stream *sampler.Stream) (*Output, error) {
	numGraphs := b.NumGraphs()
	out.Focus = make([]int, numGraphs)
	out.Species = make([]int, numGraphs)
	out.Positions = make([]fragment.Vec3, numGraphs)
	out.Stopped = make([]bool, numGraphs)
	out.SpeciesLogits = make([][]float64, numGraphs)
	out.Position = make([]*heads.PositionOutput, numGraphs)

	for g := 0; g < numGraphs; g++ {
		gs := stream.ChildIndex(g)
		state := sampler.NewStepState()

		dist := out.FocusDists[g]
		mass := append(append([]float64(nil), dist.NodeProbs...), dist.Stop)
		choice, err := sampler.Categorical(gs.Child("focus").Rand(), mass)
		if err != nil {
			return nil, err
		}
		if choice == len(dist.NodeProbs) {
			if err := state.ChooseStop(); err != nil {
				return nil, err
			}
			out.Focus[g] = -1
			out.Species[g] = -1
			out.Stopped[g] = true
			continue
		}
		lo, _ := b.NodeRange(g)
		if err := state.ChooseFocus(lo + choice); err != nil {
			return nil, err
		}

		logits, err := m.species.Apply(tree, feats, []int{state.FocusNode})
		if err != nil {
			return nil, err
		}
		out.SpeciesLogits[g] = logits[0]
		sp, err := sampler.CategoricalLogits(gs.Child("species").Rand(), logits[0])
		if err != nil {
			return nil, err
		}
		if err := state.ChooseSpecies(sp); err != nil {
			return nil, err
		}

		posOut, err := m.posHead.Apply(tree, feats, []int{state.FocusNode}, []int{sp})
		if err != nil {
			return nil, err
		}
		out.Position[g] = posOut[0]
		offset, err := sampler.SamplePosition(gs.Child("position").Rand(), posOut[0], m.grid, m.radii)
		if err != nil {
			return nil, err
		}
		abs := b.Positions[state.FocusNode].Add(offset)
		if err := state.ChoosePosition(abs); err != nil {
			return nil, err
		}

		out.Focus[g] = state.FocusNode
		out.Species[g] = state.Species
		out.Positions[g] = state.Position
	}
	return out, nil
}
