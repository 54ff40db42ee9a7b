package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

func TestStreamDeterminism(t *testing.T) {
	a := NewStream(42).Child("focus").ChildIndex(3)
	b := NewStream(42).Child("focus").ChildIndex(3)
	ra, rb := a.Rand(), b.Rand()
	for i := 0; i < 10; i++ {
		assert.Equal(t, ra.Uint64(), rb.Uint64())
	}
}

func TestStreamIndependence(t *testing.T) {
	root := NewStream(42)
	focus := root.Child("focus").Rand()
	species := root.Child("species").Rand()
	// Different labels must not produce the same sequence.
	same := true
	for i := 0; i < 8; i++ {
		if focus.Uint64() != species.Uint64() {
			same = false
		}
	}
	assert.False(t, same)

	g0 := root.ChildIndex(0).Rand().Uint64()
	g1 := root.ChildIndex(1).Rand().Uint64()
	assert.NotEqual(t, g0, g1)
}

func TestSegmentFocusSoftmax(t *testing.T) {
	a := &fragment.Fragment{
		Species:   []int{1, 0},
		Positions: []fragment.Vec3{{}, {X: 1}},
		Senders:   []int{0, 1},
		Receivers: []int{1, 0},
		Globals:   fragment.Globals{TargetSpecies: 0, TargetPosition: fragment.Vec3{Z: 1}},
	}
	b := &fragment.Fragment{
		Species:   []int{2},
		Positions: []fragment.Vec3{{}},
		Globals:   fragment.Globals{Stop: true},
	}
	batch, err := fragment.NewBatch([]*fragment.Fragment{a, b}, 5, 8, 8, 4)
	require.NoError(t, err)

	dists := SegmentFocusSoftmax([]float64{1, 2, 3}, []float64{0.5, -0.5}, batch)
	require.Len(t, dists, 2)

	sum := dists[0].Stop
	for _, p := range dists[0].NodeProbs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	require.Len(t, dists[0].NodeProbs, 2)
	assert.Greater(t, dists[0].NodeProbs[1], dists[0].NodeProbs[0])

	require.Len(t, dists[1].NodeProbs, 1)
	assert.InDelta(t, 1.0, dists[1].NodeProbs[0]+dists[1].Stop, 1e-12)
}

func TestCategorical(t *testing.T) {
	rng := NewStream(1).Rand()
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		idx, err := Categorical(rng, []float64{0, 1, 3})
		require.NoError(t, err)
		counts[idx]++
	}
	assert.Zero(t, counts[0])
	assert.Greater(t, counts[2], counts[1])

	_, err := Categorical(rng, []float64{0, 0})
	assert.True(t, errors.IsCode(err, errors.CodeSampleDegenerateMass))
}

func TestCategoricalLogitsDeterministic(t *testing.T) {
	logits := []float64{0.3, -1.2, 2.4, 0.1}
	i1, err := CategoricalLogits(NewStream(9).Rand(), logits)
	require.NoError(t, err)
	i2, err := CategoricalLogits(NewStream(9).Rand(), logits)
	require.NoError(t, err)
	assert.Equal(t, i1, i2)
}

func TestStepStateTransitions(t *testing.T) {
	s := NewStepState()
	assert.Equal(t, PhaseAwaitingFocus, s.Phase)

	require.Error(t, s.ChooseSpecies(1))
	require.NoError(t, s.ChooseFocus(2))
	assert.Equal(t, PhaseAwaitingSpecies, s.Phase)

	require.Error(t, s.ChooseFocus(0))
	require.NoError(t, s.ChooseSpecies(1))
	require.NoError(t, s.ChoosePosition(fragment.Vec3{X: 1}))
	assert.True(t, s.Done())
	assert.Equal(t, PhaseStepComplete, s.Phase)
}

func TestStepStateStop(t *testing.T) {
	s := NewStepState()
	require.NoError(t, s.ChooseStop())
	assert.Equal(t, PhaseStopped, s.Phase)
	assert.True(t, s.Done())
	require.Error(t, s.ChooseSpecies(0))
}

func TestSamplePositionConcentrated(t *testing.T) {
	// A sharply peaked factorized distribution must place samples near its
	// mode: radius bin 2, +z direction.
	grid, err := irreps.NewGrid(1, 6, 5)
	require.NoError(t, err)
	radii := []float64{1.0, 1.1, 1.2, 1.3}

	zBoost := 100.0
	out := &heads.PositionOutput{
		Factorized:   true,
		RadialLogits: []float64{-50, -50, 0, -50},
		// Degree-1 m=0 component points along +z.
		Angular: [][]float64{{0, 0, zBoost, 0}},
	}

	rng := NewStream(7).Rand()
	for i := 0; i < 20; i++ {
		p, err := SamplePosition(rng, out, grid, radii)
		require.NoError(t, err)
		assert.InDelta(t, 1.2, p.Norm(), 1e-9)
		dir := p.Scale(1 / p.Norm())
		assert.Greater(t, dir.Z, 0.9)
	}
}

func TestSamplePositionDeterministic(t *testing.T) {
	grid, err := irreps.NewGrid(1, 4, 3)
	require.NoError(t, err)
	radii := []float64{0.9, 1.1}
	out := &heads.PositionOutput{
		Factorized:   true,
		RadialLogits: []float64{0.2, -0.1},
		Angular:      [][]float64{{0.5, 0.1, -0.3, 0.2}},
	}
	p1, err := SamplePosition(NewStream(3).Rand(), out, grid, radii)
	require.NoError(t, err)
	p2, err := SamplePosition(NewStream(3).Rand(), out, grid, radii)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestSamplePositionDegenerate(t *testing.T) {
	grid, err := irreps.NewGrid(0, 2, 1)
	require.NoError(t, err)
	out := &heads.PositionOutput{
		Factorized:   true,
		RadialLogits: []float64{math.Inf(-1)},
		Angular:      [][]float64{{0}},
	}
	_, err = SamplePosition(NewStream(1).Rand(), out, grid, []float64{1})
	assert.True(t, errors.IsCode(err, errors.CodeSampleDegenerateMass))
}
