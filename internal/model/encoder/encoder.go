package encoder

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// ─────────────────────────────────────────────────────────────────────────────
// Encoder contract
// ─────────────────────────────────────────────────────────────────────────────

// Variant names for Config.Variant.
const (
	VariantMLP         = "mlp"
	VariantGraphConv   = "graphconv"
	VariantEquivariant = "equivariant"
)

// Config carries the architecture hyperparameters shared by all encoder
// variants.
type Config struct {
	Variant     string
	NumElements int
	Channels    int
	LMax        int
	Rounds      int
	Cutoff      float64
	NumRBF      int
	HiddenDim   int
}

// Validate rejects configurations no variant can run with.
func (c Config) Validate() error {
	if c.NumElements <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "num_elements must be positive, got %d", c.NumElements)
	}
	if c.Channels <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "channels must be positive, got %d", c.Channels)
	}
	if c.LMax < 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "lmax must be non-negative, got %d", c.LMax)
	}
	if c.Rounds <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "rounds must be positive, got %d", c.Rounds)
	}
	if c.Cutoff <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "cutoff must be positive, got %v", c.Cutoff)
	}
	if c.NumRBF < 2 {
		return errors.Newf(errors.CodeModelConfigInvalid, "num_rbf must be at least 2, got %d", c.NumRBF)
	}
	if c.HiddenDim <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid, "hidden_dim must be positive, got %d", c.HiddenDim)
	}
	return nil
}

// Encoder turns a batch of partial molecular graphs into per-node feature
// coefficients. Implementations differ in how much geometry they expose to
// the heads: the mlp variant feeds raw coordinates through dense layers, the
// graphconv variant sees only interatomic distances, and the equivariant
// variant carries full degree-l coefficient blocks that rotate with the
// input.
type Encoder interface {
	// Init allocates the encoder's parameters in the tree.
	Init(tree *nn.Tree, rng *rand.Rand)
	// Apply runs the forward pass over a validated batch.
	Apply(tree *nn.Tree, b *fragment.Batch) (*irreps.NodeFeatures, error)
}

// New builds the encoder named by cfg.Variant.
func New(cfg Config) (Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Variant {
	case VariantMLP:
		return &mlpEncoder{cfg: cfg}, nil
	case VariantGraphConv:
		return &graphConvEncoder{cfg: cfg}, nil
	case VariantEquivariant:
		return &equivariantEncoder{cfg: cfg}, nil
	default:
		return nil, errors.Newf(errors.CodeModelVariantUnknown,
			"unknown encoder variant %q", cfg.Variant)
	}
}

// embedSpecies writes the species embedding into the degree-0 slot of every
// node's channels. All variants start from this.
func embedSpecies(e nn.Embed, tree *nn.Tree, b *fragment.Batch, feats *irreps.NodeFeatures) error {
	for i := 0; i < b.NumNodes(); i++ {
		v, err := e.Apply(tree, b.Species[i])
		if err != nil {
			return err
		}
		for c := 0; c < feats.Channels; c++ {
			feats.Set(i, c, 0, v[c])
		}
	}
	return nil
}
