package heads

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// ─────────────────────────────────────────────────────────────────────────────
// Focus head
// ─────────────────────────────────────────────────────────────────────────────

// FocusHead scores every node of a graph as the next attachment point and
// produces one extra stop logit per graph. Node scores come from a dense
// network over the node's invariant channels; the stop logit comes from a
// readout network over the mean-pooled invariant channels, so both are
// rotation invariant.
type FocusHead struct {
	Channels int
	Hidden   int
}

func (h FocusHead) nodeNet() nn.MLP {
	return nn.MLP{Path: "focus/node", Sizes: []int{h.Channels, h.Hidden, 1}}
}

func (h FocusHead) stopNet() nn.MLP {
	return nn.MLP{Path: "focus/stop", Sizes: []int{h.Channels, h.Hidden, 1}}
}

// Init allocates the head's parameters.
func (h FocusHead) Init(tree *nn.Tree, rng *rand.Rand) {
	h.nodeNet().Init(tree, rng)
	h.stopNet().Init(tree, rng)
}

// Apply returns one logit per node and one stop logit per graph. Node logits
// are aligned with the batch's node ordering; competition between node and
// stop logits happens later, inside the per-graph softmax.
func (h FocusHead) Apply(tree *nn.Tree, feats *irreps.NodeFeatures, b *fragment.Batch) (nodeLogits, stopLogits []float64, err error) {
	nodeNet := h.nodeNet()
	stopNet := h.stopNet()

	nodeLogits = make([]float64, b.NumNodes())
	for i := 0; i < b.NumNodes(); i++ {
		out, err := nodeNet.Apply(tree, feats.Scalars(i))
		if err != nil {
			return nil, nil, err
		}
		nodeLogits[i] = out[0]
	}

	stopLogits = make([]float64, b.NumGraphs())
	for g := 0; g < b.NumGraphs(); g++ {
		lo, hi := b.NodeRange(g)
		pooled := make([][]float64, 0, hi-lo)
		for i := lo; i < hi; i++ {
			pooled = append(pooled, feats.Scalars(i))
		}
		out, err := stopNet.Apply(tree, nn.MeanPool(pooled))
		if err != nil {
			return nil, nil, err
		}
		stopLogits[g] = out[0]
	}
	return nodeLogits, stopLogits, nil
}
