package generation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/model/encoder"
	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/internal/model/sampler"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

const (
	testMinRadius = 0.75
	testMaxRadius = 2.03
)

func tinyModel(t *testing.T) (*model.Model, *nn.Tree) {
	t.Helper()
	m, err := model.New(model.Config{
		Encoder: encoder.Config{
			Variant:     encoder.VariantMLP,
			NumElements: 5,
			Channels:    4,
			LMax:        1,
			Rounds:      1,
			Cutoff:      5.0,
			NumRBF:      4,
			HiddenDim:   8,
		},
		Position: heads.PositionConfig{
			Variant:     heads.PositionFactorized,
			Channels:    4,
			PosChannels: 2,
			LMax:        1,
			NumRadii:    4,
			MinRadius:   testMinRadius,
			MaxRadius:   testMaxRadius,
			Hidden:      8,
			NumElements: 5,
		},
		HeadHidden:        8,
		ResBeta:           4,
		ResAlpha:          3,
		RadiusRBFVariance: 1e-2,
	})
	require.NoError(t, err)
	return m, m.InitParams(3)
}

func newTestGenerator(t *testing.T, numMolecules, maxAtoms int) *Generator {
	t.Helper()
	m, tree := tinyModel(t)
	gen, err := NewGenerator(config.SamplingConfig{
		NumMolecules: numMolecules,
		MaxAtoms:     maxAtoms,
		Seed:         99,
	}, m, tree, 1, 5, 5.0, nil, nil)
	require.NoError(t, err)
	return gen
}

func TestSeedSpeciesFor(t *testing.T) {
	assert.Equal(t, 1, SeedSpeciesFor([]string{"H", "C", "N", "O", "F"}))
	assert.Equal(t, 0, SeedSpeciesFor([]string{"H", "O"}))
}

func TestMoleculeSymbols(t *testing.T) {
	mol := &Molecule{Species: []int{1, 0, 0}}
	symbols, err := mol.Symbols([]string{"H", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "H", "H"}, symbols)

	mol = &Molecule{Species: []int{5}}
	_, err = mol.Symbols([]string{"H", "C"})
	assert.True(t, errors.IsCode(err, errors.CodeDataUnknownElement))
}

func TestNewGeneratorRejectsBadSeedSpecies(t *testing.T) {
	m, tree := tinyModel(t)
	_, err := NewGenerator(config.SamplingConfig{NumMolecules: 1, MaxAtoms: 4},
		m, tree, 9, 5, 5.0, nil, nil)
	assert.True(t, errors.IsCode(err, errors.CodeDataUnknownElement))
}

func TestGenerateOneStartsFromSeedAtom(t *testing.T) {
	gen := newTestGenerator(t, 1, 6)
	mol, err := gen.GenerateOne(sampler.NewStream(7))
	require.NoError(t, err)

	require.GreaterOrEqual(t, mol.NumAtoms(), 1)
	assert.LessOrEqual(t, mol.NumAtoms(), 6)
	assert.Equal(t, 1, mol.Species[0])
	assert.Equal(t, 0.0, mol.Positions[0].Norm())
	assert.NotEmpty(t, mol.ID)
}

func TestGenerateOnePlacementsStayWithinRadiusRange(t *testing.T) {
	gen := newTestGenerator(t, 1, 8)
	mol, err := gen.GenerateOne(sampler.NewStream(13))
	require.NoError(t, err)

	// Every new atom sits one sampled radius away from its focus, so its
	// nearest earlier atom can be at most MaxRadius away.
	for k := 1; k < mol.NumAtoms(); k++ {
		nearest := math.Inf(1)
		for j := 0; j < k; j++ {
			if d := mol.Positions[k].Sub(mol.Positions[j]).Norm(); d < nearest {
				nearest = d
			}
		}
		assert.LessOrEqual(t, nearest, testMaxRadius+1e-9, "atom %d", k)
	}
}

func TestGenerateOneDeterministic(t *testing.T) {
	gen := newTestGenerator(t, 1, 6)

	a, err := gen.GenerateOne(sampler.NewStream(21))
	require.NoError(t, err)
	b, err := gen.GenerateOne(sampler.NewStream(21))
	require.NoError(t, err)

	assert.Equal(t, a.Species, b.Species)
	assert.Equal(t, a.Positions, b.Positions)
	assert.Equal(t, a.Stopped, b.Stopped)
}

func TestGenerateProducesRequestedCount(t *testing.T) {
	gen := newTestGenerator(t, 3, 5)
	mols, err := gen.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, mols, 3)
	for _, mol := range mols {
		assert.GreaterOrEqual(t, mol.NumAtoms(), 1)
		assert.LessOrEqual(t, mol.NumAtoms(), 5)
		if !mol.Stopped {
			assert.Equal(t, 5, mol.NumAtoms())
		}
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	gen := newTestGenerator(t, 10, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mols, err := gen.Generate(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mols)
}
