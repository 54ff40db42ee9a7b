package encoder

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// equivariantEncoder is the full message-passing network. Each round builds
// edge messages as a learned radial profile times the spherical-harmonic
// expansion of the edge direction times the sender's invariant channel
// value, sum-aggregates them onto receivers, mixes channels degree by
// degree, and renormalizes each degree block. Every operation either scales
// a degree-l block by an invariant or mixes channels within a degree, so the
// output coefficients rotate exactly as the inputs do.
type equivariantEncoder struct {
	cfg Config
}

func (q *equivariantEncoder) embed() nn.Embed {
	return nn.Embed{Path: "encoder/embed", Vocab: q.cfg.NumElements, Dim: q.cfg.Channels}
}

func (q *equivariantEncoder) radialNet(round int) nn.MLP {
	return nn.MLP{
		Path:  nn.Join("encoder", "round"+strconv.Itoa(round), "radial"),
		Sizes: []int{q.cfg.NumRBF, q.cfg.HiddenDim, q.cfg.Channels * (q.cfg.LMax + 1)},
	}
}

func (q *equivariantEncoder) mixPath(round, degree int) string {
	return nn.Join("encoder", "round"+strconv.Itoa(round), "mix", "l"+strconv.Itoa(degree))
}

func (q *equivariantEncoder) Init(tree *nn.Tree, rng *rand.Rand) {
	q.embed().Init(tree, rng)
	ch := q.cfg.Channels
	for r := 0; r < q.cfg.Rounds; r++ {
		q.radialNet(r).Init(tree, rng)
		for l := 0; l <= q.cfg.LMax; l++ {
			// Mixes (self ‖ aggregated messages) channels into new channels.
			w := nn.NewTensor(ch, 2*ch)
			w.XavierFill(rng, 2*ch, ch)
			tree.Set(q.mixPath(r, l), w)
		}
	}
}

func (q *equivariantEncoder) Apply(tree *nn.Tree, b *fragment.Batch) (*irreps.NodeFeatures, error) {
	n := b.NumNodes()
	ch := q.cfg.Channels
	lmax := q.cfg.LMax
	dim := irreps.Dim(lmax)
	rbf := newRadialBasis(q.cfg.NumRBF, q.cfg.Cutoff)

	feats := irreps.NewNodeFeatures(n, ch, lmax)
	if err := embedSpecies(q.embed(), tree, b, feats); err != nil {
		return nil, err
	}

	// Edge geometry is fixed across rounds.
	type edgeGeom struct {
		rbf   []float64
		basis []float64
	}
	geoms := make([]edgeGeom, b.NumEdges())
	for e := range geoms {
		rel := b.Positions[b.Receivers[e]].Sub(b.Positions[b.Senders[e]])
		dist := rel.Norm()
		var basis []float64
		if dist > 0 {
			dir := rel.Scale(1 / dist)
			basis = irreps.EvalBasis(dir.X, dir.Y, dir.Z, lmax)
		} else {
			basis = make([]float64, dim)
		}
		geoms[e] = edgeGeom{rbf: rbf.expand(dist), basis: basis}
	}

	for r := 0; r < q.cfg.Rounds; r++ {
		radial := q.radialNet(r)

		msg := irreps.NewNodeFeatures(n, ch, lmax)
		for e := 0; e < b.NumEdges(); e++ {
			prof, err := radial.Apply(tree, geoms[e].rbf)
			if err != nil {
				return nil, err
			}
			s, t := b.Senders[e], b.Receivers[e]
			for c := 0; c < ch; c++ {
				scalar := feats.At(s, c, 0)
				if scalar == 0 {
					continue
				}
				for l := 0; l <= lmax; l++ {
					w := prof[c*(lmax+1)+l] * scalar
					for m := -l; m <= l; m++ {
						idx := irreps.Idx(l, m)
						msg.Add(t, c, idx, w*geoms[e].basis[idx])
					}
				}
			}
		}

		next := irreps.NewNodeFeatures(n, ch, lmax)
		for l := 0; l <= lmax; l++ {
			w, err := tree.Get(q.mixPath(r, l))
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				for m := -l; m <= l; m++ {
					idx := irreps.Idx(l, m)
					for c := 0; c < ch; c++ {
						var v float64
						for j := 0; j < ch; j++ {
							v += w.At2(c, j) * feats.At(i, j, idx)
							v += w.At2(c, ch+j) * msg.At(i, j, idx)
						}
						// Residual keeps early rounds close to the embedding.
						next.Set(i, c, idx, feats.At(i, c, idx)+v)
					}
				}
			}
		}
		normalizeDegrees(next)
		feats = next
	}
	return feats, nil
}

// normalizeDegrees rescales each node's degree-l block to unit root mean
// square over (channels × orders), leaving zero blocks untouched.
func normalizeDegrees(f *irreps.NodeFeatures) {
	const eps = 1e-12
	for i := 0; i < f.NumNodes; i++ {
		for l := 0; l <= f.LMax; l++ {
			var sq float64
			cnt := f.Channels * (2*l + 1)
			for c := 0; c < f.Channels; c++ {
				for m := -l; m <= l; m++ {
					v := f.At(i, c, irreps.Idx(l, m))
					sq += v * v
				}
			}
			rms := math.Sqrt(sq / float64(cnt))
			if rms < eps {
				continue
			}
			inv := 1 / rms
			for c := 0; c < f.Channels; c++ {
				for m := -l; m <= l; m++ {
					idx := irreps.Idx(l, m)
					f.Set(i, c, idx, f.At(i, c, idx)*inv)
				}
			}
		}
	}
}
