package heads

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// SpeciesHead predicts the element of the next atom conditioned on the focus
// node's invariant channels only. One logit vector per graph.
type SpeciesHead struct {
	Channels    int
	Hidden      int
	NumElements int
}

func (h SpeciesHead) net() nn.MLP {
	return nn.MLP{Path: "species/net", Sizes: []int{h.Channels, h.Hidden, h.NumElements}}
}

// Init allocates the head's parameters.
func (h SpeciesHead) Init(tree *nn.Tree, rng *rand.Rand) {
	h.net().Init(tree, rng)
}

// Apply returns element logits for each graph, reading features at the given
// focus node indices (one per graph, already resolved by the caller).
func (h SpeciesHead) Apply(tree *nn.Tree, feats *irreps.NodeFeatures, focusNodes []int) ([][]float64, error) {
	net := h.net()
	out := make([][]float64, len(focusNodes))
	for g, node := range focusNodes {
		if node < 0 || node >= feats.NumNodes {
			return nil, errors.Newf(errors.CodeModelShapeMismatch,
				"focus node %d out of range for %d nodes", node, feats.NumNodes)
		}
		logits, err := net.Apply(tree, feats.Scalars(node))
		if err != nil {
			return nil, err
		}
		out[g] = logits
	}
	return out, nil
}
