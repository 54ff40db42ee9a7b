package encoder

import (
	"math/rand"
	"strconv"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// graphConvEncoder runs continuous-filter graph convolutions over the edge
// list. Filters are generated from the radial basis expansion of each edge
// length, so node features depend on interatomic distances only and are
// rotation invariant by construction. Higher-degree coefficient slots stay
// zero.
type graphConvEncoder struct {
	cfg Config
}

func (g *graphConvEncoder) embed() nn.Embed {
	return nn.Embed{Path: "encoder/embed", Vocab: g.cfg.NumElements, Dim: g.cfg.Channels}
}

func (g *graphConvEncoder) filterNet(round int) nn.MLP {
	return nn.MLP{
		Path:  nn.Join("encoder", "round"+strconv.Itoa(round), "filter"),
		Sizes: []int{g.cfg.NumRBF, g.cfg.HiddenDim, g.cfg.Channels},
	}
}

func (g *graphConvEncoder) updateNet(round int) nn.MLP {
	return nn.MLP{
		Path:  nn.Join("encoder", "round"+strconv.Itoa(round), "update"),
		Sizes: []int{g.cfg.Channels, g.cfg.HiddenDim, g.cfg.Channels},
	}
}

func (g *graphConvEncoder) Init(tree *nn.Tree, rng *rand.Rand) {
	g.embed().Init(tree, rng)
	for r := 0; r < g.cfg.Rounds; r++ {
		g.filterNet(r).Init(tree, rng)
		g.updateNet(r).Init(tree, rng)
	}
}

func (g *graphConvEncoder) Apply(tree *nn.Tree, b *fragment.Batch) (*irreps.NodeFeatures, error) {
	n := b.NumNodes()
	rbf := newRadialBasis(g.cfg.NumRBF, g.cfg.Cutoff)

	h := make([][]float64, n)
	embed := g.embed()
	for i := 0; i < n; i++ {
		v, err := embed.Apply(tree, b.Species[i])
		if err != nil {
			return nil, err
		}
		h[i] = v
	}

	// Precompute edge filters input once; filter weights differ per round.
	edgeRBF := make([][]float64, b.NumEdges())
	for e := 0; e < b.NumEdges(); e++ {
		d := b.Positions[b.Receivers[e]].Sub(b.Positions[b.Senders[e]]).Norm()
		edgeRBF[e] = rbf.expand(d)
	}

	for r := 0; r < g.cfg.Rounds; r++ {
		filter := g.filterNet(r)
		update := g.updateNet(r)

		agg := make([][]float64, n)
		for i := range agg {
			agg[i] = make([]float64, g.cfg.Channels)
		}
		for e := 0; e < b.NumEdges(); e++ {
			w, err := filter.Apply(tree, edgeRBF[e])
			if err != nil {
				return nil, err
			}
			s, t := b.Senders[e], b.Receivers[e]
			for c := 0; c < g.cfg.Channels; c++ {
				agg[t][c] += w[c] * h[s][c]
			}
		}
		for i := 0; i < n; i++ {
			u, err := update.Apply(tree, agg[i])
			if err != nil {
				return nil, err
			}
			for c := 0; c < g.cfg.Channels; c++ {
				h[i][c] += u[c]
			}
		}
	}

	feats := irreps.NewNodeFeatures(n, g.cfg.Channels, g.cfg.LMax)
	for i := 0; i < n; i++ {
		for c := 0; c < g.cfg.Channels; c++ {
			feats.Set(i, c, 0, h[i][c])
		}
	}
	return feats, nil
}
