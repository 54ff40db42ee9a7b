// Package irreps implements the spherical-harmonic coefficient spaces used
// by the equivariant encoder and the position head: real spherical-harmonic
// basis evaluation, degree-indexed coefficient containers, and the
// forward/inverse transform between coefficient space and a discretized
// angular grid over the sphere.
//
// Conventions:
//
//   - Real, orthonormal spherical harmonics Y_{l,m} with ∫ Y² dΩ = 1.
//   - Flattened degree/order indexing idx = l² + l + m for l in 0..LMax,
//     m in -l..l, so a full basis to degree L has (L+1)² entries.
//   - Within degree 1 the order triplet (m=-1, 0, +1) spans (y, z, x), so a
//     rotation acts on the degree-1 block exactly as it acts on vectors.
//
// All functions are pure; nothing in this package allocates global state.
package irreps

import (
	"math"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// Dim returns the number of basis functions up to degree lmax: (lmax+1)².
func Dim(lmax int) int { return (lmax + 1) * (lmax + 1) }

// Idx returns the flattened index of (l, m): l² + l + m.
func Idx(l, m int) int { return l*l + l + m }

// normConst returns the orthonormalisation constant
// K(l,m) = sqrt((2l+1)/(4π) · (l-m)!/(l+m)!) for m ≥ 0.
func normConst(l, m int) float64 {
	num := float64(2*l+1) / (4 * math.Pi)
	for k := l - m + 1; k <= l+m; k++ {
		num /= float64(k)
	}
	return math.Sqrt(num)
}

// assocLegendre fills out[l][m] with the associated Legendre values P_l^m(x)
// for 0 ≤ m ≤ l ≤ lmax, using the stable diagonal-then-downward recurrences:
//
//	P_m^m     = (2m-1)!! (1-x²)^{m/2}
//	P_{m+1}^m = x (2m+1) P_m^m
//	P_l^m     = ((2l-1) x P_{l-1}^m - (l+m-1) P_{l-2}^m) / (l-m)
//
// The Condon-Shortley phase is omitted; orthonormality is unaffected.
func assocLegendre(lmax int, x float64) [][]float64 {
	out := make([][]float64, lmax+1)
	for l := 0; l <= lmax; l++ {
		out[l] = make([]float64, l+1)
	}
	sinTheta := math.Sqrt(math.Max(0, 1-x*x))

	out[0][0] = 1
	for m := 1; m <= lmax; m++ {
		out[m][m] = out[m-1][m-1] * float64(2*m-1) * sinTheta
	}
	for m := 0; m < lmax; m++ {
		out[m+1][m] = x * float64(2*m+1) * out[m][m]
	}
	for m := 0; m <= lmax; m++ {
		for l := m + 2; l <= lmax; l++ {
			out[l][m] = (float64(2*l-1)*x*out[l-1][m] - float64(l+m-1)*out[l-2][m]) / float64(l-m)
		}
	}
	return out
}

// EvalBasis evaluates the real spherical-harmonic basis up to degree lmax at
// the unit direction (x, y, z), returning a slice of length Dim(lmax) in
// flattened (l, m) order. The input must be normalized; a zero vector yields
// the basis at the north pole, which callers must avoid by checking edge
// lengths first.
func EvalBasis(x, y, z float64, lmax int) []float64 {
	out := make([]float64, Dim(lmax))
	phi := math.Atan2(y, x)
	plm := assocLegendre(lmax, z)

	// lmax is small in practice, so cos(mφ)/sin(mφ) are evaluated directly
	// instead of via the angle-addition recurrence.
	for l := 0; l <= lmax; l++ {
		out[Idx(l, 0)] = normConst(l, 0) * plm[l][0]
		for m := 1; m <= l; m++ {
			k := math.Sqrt2 * normConst(l, m) * plm[l][m]
			out[Idx(l, m)] = k * math.Cos(float64(m)*phi)
			out[Idx(l, -m)] = k * math.Sin(float64(m)*phi)
		}
	}
	return out
}

// ValidateDegree rejects negative maximum degrees at configuration
// boundaries so deeper code can assume lmax ≥ 0.
func ValidateDegree(lmax int) error {
	if lmax < 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "max spherical-harmonic degree must be ≥ 0, got %d", lmax)
	}
	return nil
}
