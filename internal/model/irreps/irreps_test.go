package irreps

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimAndIdx(t *testing.T) {
	assert.Equal(t, 1, Dim(0))
	assert.Equal(t, 4, Dim(1))
	assert.Equal(t, 9, Dim(2))
	assert.Equal(t, 16, Dim(3))

	// Flattened indices enumerate (l, m) in order.
	next := 0
	for l := 0; l <= 3; l++ {
		for m := -l; m <= l; m++ {
			assert.Equal(t, next, Idx(l, m), "l=%d m=%d", l, m)
			next++
		}
	}
}

func TestEvalBasisConstantTerm(t *testing.T) {
	// Y_00 is 1/sqrt(4π) everywhere on the sphere.
	want := 1 / math.Sqrt(4*math.Pi)
	for _, dir := range [][3]float64{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}, {0.6, 0, 0.8}} {
		b := EvalBasis(dir[0], dir[1], dir[2], 2)
		assert.InDelta(t, want, b[0], 1e-12)
	}
}

func TestEvalBasisDegreeOneIsScaledDirection(t *testing.T) {
	// The degree-1 block at index (l²+l+m) spans (y, z, x) up to the common
	// normalization sqrt(3/4π).
	c := math.Sqrt(3 / (4 * math.Pi))
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		x, y, z := randomUnit(rng)
		b := EvalBasis(x, y, z, 1)
		assert.InDelta(t, c*y, b[Idx(1, -1)], 1e-12)
		assert.InDelta(t, c*z, b[Idx(1, 0)], 1e-12)
		assert.InDelta(t, c*x, b[Idx(1, 1)], 1e-12)
	}
}

func TestBasisOrthonormalOnGrid(t *testing.T) {
	const lmax = 3
	g, err := NewGrid(lmax, 2*(lmax+1), 2*lmax+1)
	require.NoError(t, err)

	// ∫ Y_i Y_j dΩ = δ_ij, evaluated by quadrature over the grid.
	dim := Dim(lmax)
	gram := make([][]float64, dim)
	for i := range gram {
		gram[i] = make([]float64, dim)
	}
	for b := 0; b < g.ResBeta; b++ {
		for a := 0; a < g.ResAlpha; a++ {
			w := g.QuadWeight(b)
			basis := g.basis[b*g.ResAlpha+a]
			for i := 0; i < dim; i++ {
				for j := 0; j <= i; j++ {
					gram[i][j] += w * basis[i] * basis[j]
				}
			}
		}
	}
	for i := 0; i < dim; i++ {
		for j := 0; j <= i; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, gram[i][j], 1e-9, "gram[%d][%d]", i, j)
		}
	}
}

func TestGridRoundTrip(t *testing.T) {
	const lmax = 4
	g, err := NewGrid(lmax, 2*(lmax+1), 2*lmax+1)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	coeffs := make([]float64, Dim(lmax))
	for i := range coeffs {
		coeffs[i] = rng.NormFloat64()
	}

	values, err := g.ToGrid(coeffs)
	require.NoError(t, err)
	back, err := g.FromGrid(values)
	require.NoError(t, err)

	for i := range coeffs {
		assert.InDelta(t, coeffs[i], back[i], 1e-10, "coefficient %d", i)
	}
}

func TestQuadWeightsSumToSphereArea(t *testing.T) {
	g, err := NewGrid(2, 30, 51)
	require.NoError(t, err)
	sum := 0.0
	for b := 0; b < g.ResBeta; b++ {
		sum += g.QuadWeight(b) * float64(g.ResAlpha)
	}
	assert.InDelta(t, 4*math.Pi, sum, 1e-10)
}

func TestDirectionIsUnit(t *testing.T) {
	g, err := NewGrid(1, 4, 5)
	require.NoError(t, err)
	for b := 0; b < g.ResBeta; b++ {
		for a := 0; a < g.ResAlpha; a++ {
			d := g.Direction(b, a)
			assert.InDelta(t, 1.0, d.Norm(), 1e-12)
		}
	}
}

func TestEvalBasisRotationDegreeOne(t *testing.T) {
	// Rotating the input direction permutes the degree-1 block exactly as the
	// rotation acts on (y, z, x). Checked with a rotation about z by a fixed
	// angle: x' = cos·x - sin·y, y' = sin·x + cos·y, z' = z.
	const ang = 0.73
	cs, sn := math.Cos(ang), math.Sin(ang)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 5; i++ {
		x, y, z := randomUnit(rng)
		xr := cs*x - sn*y
		yr := sn*x + cs*y

		orig := EvalBasis(x, y, z, 1)
		rot := EvalBasis(xr, yr, z, 1)

		// Apply the same rotation to the degree-1 components of orig.
		ox := orig[Idx(1, 1)]
		oy := orig[Idx(1, -1)]
		oz := orig[Idx(1, 0)]
		assert.InDelta(t, cs*ox-sn*oy, rot[Idx(1, 1)], 1e-12)
		assert.InDelta(t, sn*ox+cs*oy, rot[Idx(1, -1)], 1e-12)
		assert.InDelta(t, oz, rot[Idx(1, 0)], 1e-12)
		// Degree 0 is invariant.
		assert.InDelta(t, orig[0], rot[0], 1e-12)
	}
}

func TestNewGridRejectsBadResolution(t *testing.T) {
	_, err := NewGrid(2, 2, 51)
	assert.Error(t, err)
	_, err = NewGrid(2, 30, 3)
	assert.Error(t, err)
	_, err = NewGrid(-1, 30, 51)
	assert.Error(t, err)
}

func TestNodeFeatures(t *testing.T) {
	nf := NewNodeFeatures(3, 2, 1)
	require.Equal(t, 3*2*Dim(1), len(nf.Data))

	// Fill node 1, channel 1 with recognizable values.
	for idx := 0; idx < Dim(1); idx++ {
		nf.Data[nf.offset(1, 1)+idx] = float64(10 + idx)
	}
	assert.Equal(t, 10.0, nf.At(1, 1, 0))
	assert.Equal(t, 13.0, nf.At(1, 1, 3))

	scalars := nf.Scalars(1)
	require.Len(t, scalars, 2)
	assert.Equal(t, 0.0, scalars[0])
	assert.Equal(t, 10.0, scalars[1])

	assert.NoError(t, nf.CheckShape(3, 2, 1))
	assert.Error(t, nf.CheckShape(3, 2, 2))
	assert.Error(t, nf.CheckShape(4, 2, 1))
}

func randomUnit(rng *rand.Rand) (x, y, z float64) {
	for {
		x, y, z = rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		n := math.Sqrt(x*x + y*y + z*z)
		if n > 1e-6 {
			return x / n, y / n, z / n
		}
	}
}
