package irreps

import (
	"math"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// Grid is a discretized angular grid over the sphere paired with the
// spherical-harmonic basis evaluated at every cell, supporting the forward
// transform (coefficients → sampled values) and the inverse transform
// (sampled values → coefficients) by Gauss-Legendre × trapezoidal quadrature.
//
// Resolution requirements for an exact round trip at degree L:
//
//	ResBeta  ≥ L + 1   (Gauss-Legendre exactness for cosθ-polynomials of degree 2L)
//	ResAlpha ≥ 2L + 1  (uniform φ grid resolving order-L azimuthal products)
//
// The defaults used by the position head (ResBeta = 2(L+1), ResAlpha = 2L+1)
// satisfy both with headroom, matching the minimum FFT-friendly resolutions
// of the reference angular pipeline.
type Grid struct {
	LMax     int
	ResBeta  int
	ResAlpha int

	cosBeta []float64 // Gauss-Legendre nodes in cosθ, ResBeta entries
	wBeta   []float64 // Gauss-Legendre weights, ResBeta entries
	phi     []float64 // uniform azimuth samples, ResAlpha entries

	// basis[b*ResAlpha+a] holds Y(θ_b, φ_a) for every flattened (l,m) index.
	basis [][]float64
}

// NewGrid constructs a Grid for the given degree and resolution.
func NewGrid(lmax, resBeta, resAlpha int) (*Grid, error) {
	if err := ValidateDegree(lmax); err != nil {
		return nil, err
	}
	if resBeta < lmax+1 {
		return nil, errors.Newf(errors.CodeModelConfigInvalid,
			"res_beta %d cannot resolve degree %d (need ≥ %d)", resBeta, lmax, lmax+1)
	}
	if resAlpha < 2*lmax+1 {
		return nil, errors.Newf(errors.CodeModelConfigInvalid,
			"res_alpha %d cannot resolve degree %d (need ≥ %d)", resAlpha, lmax, 2*lmax+1)
	}

	g := &Grid{LMax: lmax, ResBeta: resBeta, ResAlpha: resAlpha}
	g.cosBeta, g.wBeta = gaussLegendre(resBeta)
	g.phi = make([]float64, resAlpha)
	for a := 0; a < resAlpha; a++ {
		g.phi[a] = 2 * math.Pi * float64(a) / float64(resAlpha)
	}

	g.basis = make([][]float64, resBeta*resAlpha)
	for b := 0; b < resBeta; b++ {
		sinTheta := math.Sqrt(math.Max(0, 1-g.cosBeta[b]*g.cosBeta[b]))
		for a := 0; a < resAlpha; a++ {
			x := sinTheta * math.Cos(g.phi[a])
			y := sinTheta * math.Sin(g.phi[a])
			g.basis[b*resAlpha+a] = EvalBasis(x, y, g.cosBeta[b], lmax)
		}
	}
	return g, nil
}

// NumCells returns the number of grid cells, ResBeta·ResAlpha.
func (g *Grid) NumCells() int { return g.ResBeta * g.ResAlpha }

// Basis returns the precomputed spherical-harmonic basis values of cell
// (b, a). The returned slice is shared; callers must not modify it.
func (g *Grid) Basis(b, a int) []float64 { return g.basis[b*g.ResAlpha+a] }

// QuadWeight returns the quadrature weight of cell (b, a): the Gauss-Legendre
// θ weight times the uniform φ cell width. Weights sum to 4π over the grid.
func (g *Grid) QuadWeight(b int) float64 {
	return g.wBeta[b] * 2 * math.Pi / float64(g.ResAlpha)
}

// Direction returns the unit direction of cell (b, a).
func (g *Grid) Direction(b, a int) fragment.Vec3 {
	sinTheta := math.Sqrt(math.Max(0, 1-g.cosBeta[b]*g.cosBeta[b]))
	return fragment.Vec3{
		X: sinTheta * math.Cos(g.phi[a]),
		Y: sinTheta * math.Sin(g.phi[a]),
		Z: g.cosBeta[b],
	}
}

// ToGrid performs the forward spherical transform: it evaluates the signal
// with the given coefficients (length Dim(LMax)) at every grid cell.
func (g *Grid) ToGrid(coeffs []float64) ([]float64, error) {
	if len(coeffs) != Dim(g.LMax) {
		return nil, errors.Newf(errors.CodeModelShapeMismatch,
			"coefficient array has %d entries, grid expects %d", len(coeffs), Dim(g.LMax))
	}
	out := make([]float64, g.NumCells())
	for cell, basis := range g.basis {
		var v float64
		for i, c := range coeffs {
			v += c * basis[i]
		}
		out[cell] = v
	}
	return out, nil
}

// FromGrid performs the inverse spherical transform: it recovers the
// coefficients of a band-limited signal from its sampled grid values via
// quadrature. For signals band-limited to LMax the round trip
// FromGrid(ToGrid(c)) == c holds to floating-point accuracy.
func (g *Grid) FromGrid(values []float64) ([]float64, error) {
	if len(values) != g.NumCells() {
		return nil, errors.Newf(errors.CodeModelShapeMismatch,
			"grid value array has %d entries, grid expects %d", len(values), g.NumCells())
	}
	out := make([]float64, Dim(g.LMax))
	for b := 0; b < g.ResBeta; b++ {
		for a := 0; a < g.ResAlpha; a++ {
			w := g.QuadWeight(b) * values[b*g.ResAlpha+a]
			basis := g.basis[b*g.ResAlpha+a]
			for i := range out {
				out[i] += w * basis[i]
			}
		}
	}
	return out, nil
}

// gaussLegendre computes the n-point Gauss-Legendre nodes and weights on
// [-1, 1] by Newton iteration on the Legendre polynomial P_n, with the
// classical Chebyshev initial guess. Nodes are returned in ascending order.
func gaussLegendre(n int) (nodes, weights []float64) {
	nodes = make([]float64, n)
	weights = make([]float64, n)
	for i := 0; i < (n+1)/2; i++ {
		// Initial guess for the i-th root (descending order).
		x := math.Cos(math.Pi * (float64(i) + 0.75) / (float64(n) + 0.5))
		var dp float64
		for iter := 0; iter < 100; iter++ {
			p0, p1 := 1.0, x
			for k := 2; k <= n; k++ {
				p0, p1 = p1, (float64(2*k-1)*x*p1-float64(k-1)*p0)/float64(k)
			}
			dp = float64(n) * (x*p1 - p0) / (x*x - 1)
			dx := p1 / dp
			x -= dx
			if math.Abs(dx) < 1e-15 {
				break
			}
		}
		w := 2 / ((1 - x*x) * dp * dp)
		nodes[n-1-i] = x
		weights[n-1-i] = w
		nodes[i] = -x
		weights[i] = w
	}
	return nodes, weights
}
