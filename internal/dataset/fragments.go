package dataset

import (
	"math"
	"math/rand"

	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// FragmentConfig controls teacher-forced fragment construction.
type FragmentConfig struct {
	// NNCutoff is the radius-graph cutoff for edge construction.
	NNCutoff float64
	// NNTolerance widens the focus candidate set: any placed atom within
	// (d_min + NNTolerance) of the target atom may serve as the focus.
	NNTolerance float64
}

// BuildFragments decomposes one full molecule into the sequence of training
// fragments an autoregressive builder would traverse. Atoms enter in a
// random connectivity-respecting order: a random seed atom, then always the
// unplaced atom nearest to the placed set. Each growth step yields one
// fragment whose focus (the placed atom nearest the incoming one, with ties
// within NNTolerance broken randomly) is relabelled to node 0; the completed
// molecule yields one final fragment marked Stop.
func BuildFragments(species []int, positions []fragment.Vec3, cfg FragmentConfig, rng *rand.Rand) ([]*fragment.Fragment, error) {
	n := len(species)
	if n == 0 || len(positions) != n {
		return nil, errors.Newf(errors.CodeDataFragmentEmpty,
			"molecule has %d species and %d positions", n, len(positions))
	}

	order := growthOrder(positions, rng)
	frags := make([]*fragment.Fragment, 0, n)

	for k := 1; k < n; k++ {
		placed := order[:k]
		target := order[k]

		focus := chooseFocus(positions, placed, target, cfg.NNTolerance, rng)

		// Relabel so the focus sits at node 0.
		local := append([]int(nil), placed...)
		for i, atom := range local {
			if atom == focus {
				local[0], local[i] = local[i], local[0]
				break
			}
		}

		sp := make([]int, k)
		pos := make([]fragment.Vec3, k)
		for i, atom := range local {
			sp[i] = species[atom]
			pos[i] = positions[atom]
		}
		senders, receivers := NeighborEdges(pos, cfg.NNCutoff)

		frags = append(frags, &fragment.Fragment{
			Species:   sp,
			Positions: pos,
			Senders:   senders,
			Receivers: receivers,
			Globals: fragment.Globals{
				TargetSpecies:  species[target],
				TargetPosition: positions[target].Sub(positions[focus]),
			},
		})
	}

	// Terminal fragment: the whole molecule, no atom to add.
	senders, receivers := NeighborEdges(positions, cfg.NNCutoff)
	frags = append(frags, &fragment.Fragment{
		Species:   append([]int(nil), species...),
		Positions: append([]fragment.Vec3(nil), positions...),
		Senders:   senders,
		Receivers: receivers,
		Globals:   fragment.Globals{Stop: true},
	})
	return frags, nil
}

// growthOrder returns a connectivity-respecting atom ordering: a random seed
// atom, then repeatedly the unplaced atom nearest to any placed atom.
func growthOrder(positions []fragment.Vec3, rng *rand.Rand) []int {
	n := len(positions)
	order := make([]int, 0, n)
	placed := make([]bool, n)

	seed := rng.Intn(n)
	order = append(order, seed)
	placed[seed] = true

	for len(order) < n {
		best := -1
		bestDist := math.Inf(1)
		for cand := 0; cand < n; cand++ {
			if placed[cand] {
				continue
			}
			for _, p := range order {
				if d := positions[cand].Sub(positions[p]).Norm(); d < bestDist {
					bestDist = d
					best = cand
				}
			}
		}
		order = append(order, best)
		placed[best] = true
	}
	return order
}

// chooseFocus picks the focus atom for an incoming target: uniformly among
// the placed atoms whose distance to the target is within NNTolerance of the
// minimum.
func chooseFocus(positions []fragment.Vec3, placed []int, target int, tolerance float64, rng *rand.Rand) int {
	dmin := math.Inf(1)
	for _, p := range placed {
		if d := positions[target].Sub(positions[p]).Norm(); d < dmin {
			dmin = d
		}
	}
	var candidates []int
	for _, p := range placed {
		if positions[target].Sub(positions[p]).Norm() <= dmin+tolerance {
			candidates = append(candidates, p)
		}
	}
	return candidates[rng.Intn(len(candidates))]
}
