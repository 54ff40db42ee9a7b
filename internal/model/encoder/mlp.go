package encoder

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// mlpEncoder is the structure-free baseline. Each node's features come from
// a dense network over its species embedding and raw coordinates, with no
// message passing and no higher-degree coefficients. Useful for sanity runs
// and ablations, not for rotation-faithful generation.
type mlpEncoder struct {
	cfg Config
}

func (m *mlpEncoder) embed() nn.Embed {
	return nn.Embed{Path: "encoder/embed", Vocab: m.cfg.NumElements, Dim: m.cfg.Channels}
}

func (m *mlpEncoder) net() nn.MLP {
	in := m.cfg.Channels + 3
	return nn.MLP{Path: "encoder/net", Sizes: []int{in, m.cfg.HiddenDim, m.cfg.HiddenDim, m.cfg.Channels}}
}

func (m *mlpEncoder) Init(tree *nn.Tree, rng *rand.Rand) {
	m.embed().Init(tree, rng)
	m.net().Init(tree, rng)
}

func (m *mlpEncoder) Apply(tree *nn.Tree, b *fragment.Batch) (*irreps.NodeFeatures, error) {
	feats := irreps.NewNodeFeatures(b.NumNodes(), m.cfg.Channels, m.cfg.LMax)
	embed := m.embed()
	net := m.net()
	for i := 0; i < b.NumNodes(); i++ {
		ev, err := embed.Apply(tree, b.Species[i])
		if err != nil {
			return nil, err
		}
		p := b.Positions[i]
		in := append(ev, p.X, p.Y, p.Z)
		out, err := net.Apply(tree, in)
		if err != nil {
			return nil, err
		}
		for c := 0; c < m.cfg.Channels; c++ {
			feats.Set(i, c, 0, out[c])
		}
	}
	return feats, nil
}
