package sampler

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// FocusDistribution is one graph's probabilities over its focus candidates.
// NodeProbs is aligned with the graph's local node order; Stop is the
// probability of the virtual stop channel that competes in the same softmax.
type FocusDistribution struct {
	NodeProbs []float64
	Stop      float64
}

// SegmentFocusSoftmax normalizes focus logits per graph, letting each
// graph's nodes compete with the graph's stop logit and with nothing else.
func SegmentFocusSoftmax(nodeLogits, stopLogits []float64, b *fragment.Batch) []FocusDistribution {
	out := make([]FocusDistribution, b.NumGraphs())
	for g := 0; g < b.NumGraphs(); g++ {
		lo, hi := b.NodeRange(g)
		logits := make([]float64, 0, hi-lo+1)
		logits = append(logits, nodeLogits[lo:hi]...)
		logits = append(logits, stopLogits[g])
		probs := make([]float64, len(logits))
		nn.Softmax(probs, logits)
		out[g] = FocusDistribution{NodeProbs: probs[:len(probs)-1], Stop: probs[len(probs)-1]}
	}
	return out
}

// Categorical samples an index from an unnormalized non-negative mass
// vector. Zero total mass is reported rather than silently resolved.
func Categorical(rng *rand.Rand, mass []float64) (int, error) {
	var total float64
	for _, m := range mass {
		total += m
	}
	if !(total > 0) {
		return 0, errors.New(errors.CodeSampleDegenerateMass,
			"categorical mass sums to zero")
	}
	u := rng.Float64() * total
	acc := 0.0
	for i, m := range mass {
		acc += m
		if u < acc {
			return i, nil
		}
	}
	return len(mass) - 1, nil
}

// CategoricalLogits softmax-normalizes logits and samples an index.
func CategoricalLogits(rng *rand.Rand, logits []float64) (int, error) {
	probs := make([]float64, len(logits))
	nn.Softmax(probs, logits)
	return Categorical(rng, probs)
}
