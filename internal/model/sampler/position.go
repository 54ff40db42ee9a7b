package sampler

import (
	"math"
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// SamplePosition draws an offset from a graph's position distribution: a
// categorical draw over the (radius bin × grid cell) lattice with quadrature
// weights folded in, then the bin-centre radius times the cell's continuous
// direction. The log-density is shifted by its maximum before
// exponentiation, so arbitrarily large logits stay finite; a distribution
// whose stabilized mass still vanishes everywhere is reported as degenerate.
func SamplePosition(rng *rand.Rand, out *heads.PositionOutput, grid *irreps.Grid, radii []float64) (fragment.Vec3, error) {
	numCells := grid.NumCells()
	logMass := make([]float64, len(radii)*numCells)

	maxLog := math.Inf(-1)
	for r := range radii {
		for b := 0; b < grid.ResBeta; b++ {
			lw := math.Log(grid.QuadWeight(b))
			for a := 0; a < grid.ResAlpha; a++ {
				cell := b*grid.ResAlpha + a
				v := out.LogValue(r, grid.Basis(b, a)) + lw
				logMass[r*numCells+cell] = v
				if v > maxLog {
					maxLog = v
				}
			}
		}
	}
	if math.IsInf(maxLog, -1) || math.IsNaN(maxLog) {
		return fragment.Vec3{}, errors.New(errors.CodeSampleDegenerateMass,
			"position distribution has no finite mass")
	}

	mass := make([]float64, len(logMass))
	for i, v := range logMass {
		mass[i] = math.Exp(v - maxLog)
	}
	idx, err := Categorical(rng, mass)
	if err != nil {
		return fragment.Vec3{}, err
	}

	r := idx / numCells
	cell := idx % numCells
	dir := grid.Direction(cell/grid.ResAlpha, cell%grid.ResAlpha)
	return dir.Scale(radii[r]), nil
}
