package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// methane-ish three-atom fragment: C at origin, two H neighbours.
func threeAtomFragment() *Fragment {
	return &Fragment{
		Species: []int{1, 0, 0},
		Positions: []Vec3{
			{0, 0, 0},
			{1.09, 0, 0},
			{0, 1.09, 0},
		},
		Senders:   []int{0, 1, 0, 2},
		Receivers: []int{1, 0, 2, 0},
		Globals:   Globals{TargetSpecies: 0, TargetPosition: Vec3{0, 0, 1.09}},
	}
}

func stopFragment() *Fragment {
	return &Fragment{
		Species:   []int{1},
		Positions: []Vec3{{0, 0, 0}},
		Globals:   Globals{Stop: true},
	}
}

func TestNewBatch_ConcatenatesAndValidates(t *testing.T) {
	b, err := NewBatch([]*Fragment{threeAtomFragment(), stopFragment()}, 5, 0, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, b.NumGraphs())
	assert.Equal(t, 4, b.NumNodes())
	assert.Equal(t, 4, b.NumEdges())
	assert.Equal(t, []int{0, 0, 0, 1}, b.NodeGraph)
	assert.Equal(t, []int{3, 1}, b.NNode)
	assert.Equal(t, []int{0, 3}, b.FirstNodeIndices())

	start, end := b.NodeRange(1)
	assert.Equal(t, 3, start)
	assert.Equal(t, 4, end)
}

func TestBatch_Validate_DanglingEdge(t *testing.T) {
	f := threeAtomFragment()
	f.Senders = append(f.Senders, 2)
	f.Receivers = append(f.Receivers, 7)
	_, err := NewBatch([]*Fragment{f}, 5, 0, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGraphEdgeOutOfRange))
}

func TestBatch_Validate_CrossGraphEdge(t *testing.T) {
	b, err := NewBatch([]*Fragment{threeAtomFragment(), stopFragment()}, 5, 0, 0, 0)
	require.NoError(t, err)
	// Splice in an edge from graph 0's node 0 to graph 1's node 3.
	b.Senders = append(b.Senders, 0)
	b.Receivers = append(b.Receivers, 3)
	b.NEdge[1]++
	err = b.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGraphEdgeOutOfRange))
}

func TestBatch_Validate_SpeciesOutOfVocab(t *testing.T) {
	f := threeAtomFragment()
	f.Species[1] = 9
	_, err := NewBatch([]*Fragment{f}, 5, 0, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGraphSpeciesOutOfVocab))
}

func TestBatch_Validate_TargetSpeciesCheckedUnlessStopped(t *testing.T) {
	f := threeAtomFragment()
	f.Globals.TargetSpecies = 11
	_, err := NewBatch([]*Fragment{f}, 5, 0, 0, 0)
	assert.True(t, errors.IsCode(err, errors.CodeGraphSpeciesOutOfVocab))

	// A stopped fragment's target fields are undefined and must not be checked.
	s := stopFragment()
	s.Globals.TargetSpecies = 11
	_, err = NewBatch([]*Fragment{s}, 5, 0, 0, 0)
	assert.NoError(t, err)
}

func TestBatch_Validate_CapacityExceeded(t *testing.T) {
	_, err := NewBatch([]*Fragment{threeAtomFragment()}, 5, 2, 0, 0)
	assert.True(t, errors.IsCode(err, errors.CodeGraphCapacityExceeded))

	_, err = NewBatch([]*Fragment{threeAtomFragment()}, 5, 0, 3, 0)
	assert.True(t, errors.IsCode(err, errors.CodeGraphCapacityExceeded))

	_, err = NewBatch([]*Fragment{threeAtomFragment(), stopFragment()}, 5, 0, 0, 1)
	assert.True(t, errors.IsCode(err, errors.CodeGraphCapacityExceeded))
}

func TestBatch_Validate_NonContiguousMembership(t *testing.T) {
	b, err := NewBatch([]*Fragment{threeAtomFragment(), stopFragment()}, 5, 0, 0, 0)
	require.NoError(t, err)
	b.NodeGraph[1] = 1
	err = b.Validate()
	assert.True(t, errors.IsCode(err, errors.CodeGraphMalformed))
}

func TestVec3_Algebra(t *testing.T) {
	v := Vec3{3, 0, 4}
	assert.InDelta(t, 5.0, v.Norm(), 1e-12)
	assert.InDelta(t, 1.0, v.Normalize().Norm(), 1e-12)
	assert.Equal(t, Vec3{6, 0, 8}, v.Scale(2))
	assert.Equal(t, Vec3{2, -1, 4}, v.Add(Vec3{-1, -1, 0}))
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
}
