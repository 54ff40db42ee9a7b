package heads

import (
	"math/rand"
	"strconv"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// Position head variants.
const (
	PositionJoint      = "joint"
	PositionFactorized = "factorized"
)

// PositionConfig describes the distribution the position head parameterizes:
// a discretized radius axis crossed with a spherical-harmonic angular signal.
type PositionConfig struct {
	Variant     string
	Channels    int // encoder channels feeding the head
	PosChannels int // independent angular signals combined by log-sum-exp
	LMax        int
	NumRadii    int
	MinRadius   float64
	MaxRadius   float64
	Hidden      int
	NumElements int
}

// Validate rejects configurations the head cannot run with.
func (c PositionConfig) Validate() error {
	if c.Variant != PositionJoint && c.Variant != PositionFactorized {
		return errors.Newf(errors.CodeModelVariantUnknown, "unknown position head variant %q", c.Variant)
	}
	if c.NumRadii < 2 {
		return errors.Newf(errors.CodeModelConfigInvalid, "num_radii must be at least 2, got %d", c.NumRadii)
	}
	if c.MinRadius <= 0 || c.MaxRadius <= c.MinRadius {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"radius range [%v, %v] is not a valid interval", c.MinRadius, c.MaxRadius)
	}
	if c.Channels <= 0 || c.PosChannels <= 0 || c.Hidden <= 0 || c.NumElements <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "position head dimensions must be positive")
	}
	if c.LMax < 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "lmax must be non-negative, got %d", c.LMax)
	}
	return nil
}

// Radii returns the bin-centre radii, spaced uniformly over the range.
func (c PositionConfig) Radii() []float64 {
	out := make([]float64, c.NumRadii)
	step := (c.MaxRadius - c.MinRadius) / float64(c.NumRadii-1)
	for i := range out {
		out[i] = c.MinRadius + step*float64(i)
	}
	return out
}

// PositionOutput holds one graph's unnormalized log-distribution over
// (radius bin, direction). The joint variant carries a full coefficient
// block per radius; the factorized variant carries radial logits plus a
// single angular block shared across radii.
type PositionOutput struct {
	Factorized bool

	// Joint: Coeffs[k][r] is the angular coefficient vector of channel k at
	// radius bin r, length (LMax+1)².
	Coeffs [][][]float64

	// Factorized fields.
	RadialLogits []float64   // [NumRadii]
	Angular      [][]float64 // [k][(LMax+1)²]
}

// LogValue evaluates the unnormalized log-density at radius bin r and a
// direction given by its spherical-harmonic basis vector. Channels combine
// by log-sum-exp.
func (o *PositionOutput) LogValue(r int, basis []float64) float64 {
	if o.Factorized {
		vals := make([]float64, len(o.Angular))
		for k, coeff := range o.Angular {
			vals[k] = dot(coeff, basis)
		}
		return o.RadialLogits[r] + nn.LogSumExp(vals)
	}
	vals := make([]float64, len(o.Coeffs))
	for k := range o.Coeffs {
		vals[k] = dot(o.Coeffs[k][r], basis)
	}
	return nn.LogSumExp(vals)
}

func dot(a, b []float64) float64 {
	var v float64
	for i := range a {
		v += a[i] * b[i]
	}
	return v
}

// PositionHead maps the focus node's equivariant features, gated by the
// target species embedding, to a PositionOutput per graph. Gates and radial
// logits are invariant; angular coefficients come from degree-preserving
// linear maps of the focus features, so the predicted density rotates with
// the fragment.
type PositionHead struct {
	Cfg PositionConfig
}

func (h PositionHead) speciesEmbed() nn.Embed {
	return nn.Embed{Path: "position/species", Vocab: h.Cfg.NumElements, Dim: h.Cfg.Channels}
}

func (h PositionHead) gateNet() nn.MLP {
	return nn.MLP{Path: "position/gate", Sizes: []int{h.Cfg.Channels, h.Cfg.Hidden, h.Cfg.Channels}}
}

func (h PositionHead) radialNet() nn.MLP {
	return nn.MLP{Path: "position/radial", Sizes: []int{2 * h.Cfg.Channels, h.Cfg.Hidden, h.Cfg.NumRadii}}
}

func (h PositionHead) mixPath(degree int) string {
	return nn.Join("position", "mix", "l"+strconv.Itoa(degree))
}

// Init allocates the head's parameters.
func (h PositionHead) Init(tree *nn.Tree, rng *rand.Rand) {
	h.speciesEmbed().Init(tree, rng)
	h.gateNet().Init(tree, rng)

	rows := h.Cfg.PosChannels
	if h.Cfg.Variant == PositionJoint {
		rows *= h.Cfg.NumRadii
	} else {
		h.radialNet().Init(tree, rng)
	}
	for l := 0; l <= h.Cfg.LMax; l++ {
		w := nn.NewTensor(rows, h.Cfg.Channels)
		w.XavierFill(rng, h.Cfg.Channels, rows)
		tree.Set(h.mixPath(l), w)
	}
}

// Apply produces one PositionOutput per graph, conditioning on the focus
// node's features and the chosen target species.
func (h PositionHead) Apply(tree *nn.Tree, feats *irreps.NodeFeatures, focusNodes, targetSpecies []int) ([]*PositionOutput, error) {
	if len(focusNodes) != len(targetSpecies) {
		return nil, errors.Newf(errors.CodeModelShapeMismatch,
			"focus nodes (%d) and target species (%d) disagree", len(focusNodes), len(targetSpecies))
	}
	dim := irreps.Dim(h.Cfg.LMax)
	embed := h.speciesEmbed()
	gate := h.gateNet()

	outs := make([]*PositionOutput, len(focusNodes))
	for g, node := range focusNodes {
		if node < 0 || node >= feats.NumNodes {
			return nil, errors.Newf(errors.CodeModelShapeMismatch,
				"focus node %d out of range for %d nodes", node, feats.NumNodes)
		}
		ev, err := embed.Apply(tree, targetSpecies[g])
		if err != nil {
			return nil, err
		}
		gains, err := gate.Apply(tree, ev)
		if err != nil {
			return nil, err
		}

		// Gate each channel by an invariant species-dependent factor.
		gated := make([][]float64, h.Cfg.Channels)
		for c := 0; c < h.Cfg.Channels; c++ {
			gated[c] = make([]float64, dim)
			for idx := 0; idx < dim; idx++ {
				gated[c][idx] = feats.At(node, c, idx) * gains[c]
			}
		}

		out := &PositionOutput{Factorized: h.Cfg.Variant == PositionFactorized}
		if out.Factorized {
			out.Angular, err = h.mixAngular(tree, gated, h.Cfg.PosChannels)
			if err != nil {
				return nil, err
			}
			in := append(append([]float64(nil), feats.Scalars(node)...), ev...)
			out.RadialLogits, err = h.radialNet().Apply(tree, in)
			if err != nil {
				return nil, err
			}
		} else {
			flat, err := h.mixAngular(tree, gated, h.Cfg.PosChannels*h.Cfg.NumRadii)
			if err != nil {
				return nil, err
			}
			out.Coeffs = make([][][]float64, h.Cfg.PosChannels)
			for k := 0; k < h.Cfg.PosChannels; k++ {
				out.Coeffs[k] = flat[k*h.Cfg.NumRadii : (k+1)*h.Cfg.NumRadii]
			}
		}
		outs[g] = out
	}
	return outs, nil
}

// mixAngular applies the per-degree linear maps to the gated focus features,
// producing `rows` output coefficient vectors.
func (h PositionHead) mixAngular(tree *nn.Tree, gated [][]float64, rows int) ([][]float64, error) {
	dim := irreps.Dim(h.Cfg.LMax)
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, dim)
	}
	for l := 0; l <= h.Cfg.LMax; l++ {
		w, err := tree.Get(h.mixPath(l))
		if err != nil {
			return nil, err
		}
		if err := w.CheckShape(rows, h.Cfg.Channels); err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			for m := -l; m <= l; m++ {
				idx := irreps.Idx(l, m)
				var v float64
				for c := 0; c < h.Cfg.Channels; c++ {
					v += w.At2(r, c) * gated[c][idx]
				}
				out[r][idx] = v
			}
		}
	}
	return out, nil
}
