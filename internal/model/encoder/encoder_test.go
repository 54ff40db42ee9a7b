package encoder

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

func testConfig(variant string) Config {
	return Config{
		Variant:     variant,
		NumElements: 5,
		Channels:    4,
		LMax:        1,
		Rounds:      2,
		Cutoff:      5.0,
		NumRBF:      8,
		HiddenDim:   16,
	}
}

// waterLike builds a single bent three-atom fragment with bidirectional
// edges, optionally with every position run through the given linear map.
func waterLike(t *testing.T, rot func(fragment.Vec3) fragment.Vec3) *fragment.Batch {
	t.Helper()
	pos := []fragment.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 0.96, Y: 0, Z: 0},
		{X: -0.24, Y: 0.93, Z: 0},
	}
	if rot != nil {
		for i := range pos {
			pos[i] = rot(pos[i])
		}
	}
	f := &fragment.Fragment{
		Species:   []int{3, 0, 0},
		Positions: pos,
		Senders:   []int{0, 1, 0, 2, 1, 2},
		Receivers: []int{1, 0, 2, 0, 2, 1},
		Globals:   fragment.Globals{TargetSpecies: 0, TargetPosition: pos[1]},
	}
	b, err := fragment.NewBatch([]*fragment.Fragment{f}, 5, 16, 32, 4)
	require.NoError(t, err)
	return b
}

func rotateZ(ang float64) func(fragment.Vec3) fragment.Vec3 {
	cs, sn := math.Cos(ang), math.Sin(ang)
	return func(v fragment.Vec3) fragment.Vec3 {
		return fragment.Vec3{X: cs*v.X - sn*v.Y, Y: sn*v.X + cs*v.Y, Z: v.Z}
	}
}

func rotateX(ang float64) func(fragment.Vec3) fragment.Vec3 {
	cs, sn := math.Cos(ang), math.Sin(ang)
	return func(v fragment.Vec3) fragment.Vec3 {
		return fragment.Vec3{X: v.X, Y: cs*v.Y - sn*v.Z, Z: sn*v.Y + cs*v.Z}
	}
}

func TestNewUnknownVariant(t *testing.T) {
	_, err := New(testConfig("transformer"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeModelVariantUnknown))
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(VariantMLP)
	cfg.Channels = 0
	_, err := New(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeModelConfigInvalid))

	cfg = testConfig(VariantMLP)
	cfg.Cutoff = -1
	_, err = New(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeModelConfigInvalid))

	// A single radial center has no defined spacing and would poison the
	// basis with NaN, so it must be rejected up front.
	cfg = testConfig(VariantMLP)
	cfg.NumRBF = 1
	_, err = New(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeModelConfigInvalid))
}

func TestRadialBasis(t *testing.T) {
	rb := newRadialBasis(8, 5.0)
	inside := rb.expand(1.2)
	require.Len(t, inside, 8)
	nonzero := false
	for _, v := range inside {
		if v != 0 {
			nonzero = true
		}
	}
	assert.True(t, nonzero)

	for _, v := range rb.expand(5.0) {
		assert.Zero(t, v)
	}
	for _, v := range rb.expand(7.3) {
		assert.Zero(t, v)
	}

	// The smallest legal basis still yields finite features everywhere.
	rb = newRadialBasis(2, 5.0)
	for _, r := range []float64{0, 1.2, 2.5, 4.9} {
		for i, v := range rb.expand(r) {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "r=%v center %d", r, i)
		}
	}
}

func TestMLPEncoderShape(t *testing.T) {
	enc, err := New(testConfig(VariantMLP))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(1)))

	feats, err := enc.Apply(tree, waterLike(t, nil))
	require.NoError(t, err)
	require.NoError(t, feats.CheckShape(3, 4, 1))
	// Only degree 0 is populated.
	for i := 0; i < 3; i++ {
		for c := 0; c < 4; c++ {
			for m := -1; m <= 1; m++ {
				assert.Zero(t, feats.At(i, c, irreps.Idx(1, m)))
			}
		}
	}
}

func TestGraphConvRotationInvariant(t *testing.T) {
	enc, err := New(testConfig(VariantGraphConv))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(2)))

	plain, err := enc.Apply(tree, waterLike(t, nil))
	require.NoError(t, err)
	rotated, err := enc.Apply(tree, waterLike(t, rotateZ(1.1)))
	require.NoError(t, err)

	for i := range plain.Data {
		assert.InDelta(t, plain.Data[i], rotated.Data[i], 1e-10)
	}
}

func TestEquivariantScalarsInvariant(t *testing.T) {
	enc, err := New(testConfig(VariantEquivariant))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(3)))

	plain, err := enc.Apply(tree, waterLike(t, nil))
	require.NoError(t, err)
	rotated, err := enc.Apply(tree, waterLike(t, rotateZ(0.87)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ps, rs := plain.Scalars(i), rotated.Scalars(i)
		for c := range ps {
			assert.InDelta(t, ps[c], rs[c], 1e-9, "node %d channel %d", i, c)
		}
	}
}

func TestEquivariantDegreeOneRotates(t *testing.T) {
	enc, err := New(testConfig(VariantEquivariant))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(4)))

	plain, err := enc.Apply(tree, waterLike(t, nil))
	require.NoError(t, err)

	rotations := map[string]func(fragment.Vec3) fragment.Vec3{
		"z-axis":   rotateZ(0.87),
		"x-axis":   rotateX(1.3),
		"composed": func(v fragment.Vec3) fragment.Vec3 { return rotateX(0.41)(rotateZ(2.2)(v)) },
	}
	for name, rot := range rotations {
		rotated, err := enc.Apply(tree, waterLike(t, rot))
		require.NoError(t, err, name)
		for i := 0; i < 3; i++ {
			for c := 0; c < 4; c++ {
				v := fragment.Vec3{
					X: plain.At(i, c, irreps.Idx(1, 1)),
					Y: plain.At(i, c, irreps.Idx(1, -1)),
					Z: plain.At(i, c, irreps.Idx(1, 0)),
				}
				want := rot(v)
				assert.InDelta(t, want.X, rotated.At(i, c, irreps.Idx(1, 1)), 1e-9, "%s node %d", name, i)
				assert.InDelta(t, want.Y, rotated.At(i, c, irreps.Idx(1, -1)), 1e-9, "%s node %d", name, i)
				assert.InDelta(t, want.Z, rotated.At(i, c, irreps.Idx(1, 0)), 1e-9, "%s node %d", name, i)
			}
		}
	}
}

func TestEquivariantDegreeOneCollinearWithDisplacement(t *testing.T) {
	enc, err := New(testConfig(VariantEquivariant))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(6)))

	pos := []fragment.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 0.6, Y: 0.8, Z: 0.5},
	}
	f := &fragment.Fragment{
		Species:   []int{1, 3},
		Positions: pos,
		Senders:   []int{0, 1},
		Receivers: []int{1, 0},
		Globals:   fragment.Globals{TargetSpecies: 0, TargetPosition: pos[1]},
	}
	b, err := fragment.NewBatch([]*fragment.Fragment{f}, 5, 16, 32, 4)
	require.NoError(t, err)

	feats, err := enc.Apply(tree, b)
	require.NoError(t, err)

	// With a single neighbour the l=1 block is built solely from the edge
	// displacement, so every channel's vector part must be collinear with it.
	rel := pos[1].Sub(pos[0])
	for i := 0; i < 2; i++ {
		for c := 0; c < 4; c++ {
			v := fragment.Vec3{
				X: feats.At(i, c, irreps.Idx(1, 1)),
				Y: feats.At(i, c, irreps.Idx(1, -1)),
				Z: feats.At(i, c, irreps.Idx(1, 0)),
			}
			assert.InDelta(t, 0, rel.Y*v.Z-rel.Z*v.Y, 1e-9, "node %d channel %d", i, c)
			assert.InDelta(t, 0, rel.Z*v.X-rel.X*v.Z, 1e-9, "node %d channel %d", i, c)
			assert.InDelta(t, 0, rel.X*v.Y-rel.Y*v.X, 1e-9, "node %d channel %d", i, c)
		}
	}
}

func TestEquivariantTranslationInvariant(t *testing.T) {
	enc, err := New(testConfig(VariantEquivariant))
	require.NoError(t, err)
	tree := nn.NewTree()
	enc.Init(tree, rand.New(rand.NewSource(5)))

	shift := fragment.Vec3{X: 3.2, Y: -1.5, Z: 0.7}
	plain, err := enc.Apply(tree, waterLike(t, nil))
	require.NoError(t, err)
	moved, err := enc.Apply(tree, waterLike(t, func(v fragment.Vec3) fragment.Vec3 { return v.Add(shift) }))
	require.NoError(t, err)

	for i := range plain.Data {
		assert.InDelta(t, plain.Data[i], moved.Data[i], 1e-10)
	}
}
