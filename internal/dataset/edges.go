package dataset

import "github.com/turtacn/MolForge-Engine/pkg/types/fragment"

// NeighborEdges builds the bidirectional radius-graph edge list: every
// ordered pair of distinct atoms closer than cutoff contributes one directed
// edge. The quadratic scan is fine at molecule scale.
func NeighborEdges(positions []fragment.Vec3, cutoff float64) (senders, receivers []int) {
	c2 := cutoff * cutoff
	for i := range positions {
		for j := range positions {
			if i == j {
				continue
			}
			d := positions[i].Sub(positions[j])
			if d.Dot(d) <= c2 {
				senders = append(senders, i)
				receivers = append(receivers, j)
			}
		}
	}
	return senders, receivers
}
