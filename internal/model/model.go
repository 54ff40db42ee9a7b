package model

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/model/encoder"
	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/irreps"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Model assembly
// ─────────────────────────────────────────────────────────────────────────────

// Config assembles the hyperparameters of the full generative core: the
// encoder, the three prediction heads, and the angular integration grid the
// position distribution is normalized and sampled on.
type Config struct {
	Encoder  encoder.Config
	Position heads.PositionConfig

	// HeadHidden is the hidden width of the focus and species heads.
	HeadHidden int

	// ResBeta and ResAlpha set the angular grid resolution.
	ResBeta  int
	ResAlpha int

	// RadiusRBFVariance is the variance of the Gaussian smearing applied to
	// the true radius when building the radial training target.
	RadiusRBFVariance float64
}

// Validate checks the assembled configuration for consistency.
func (c Config) Validate() error {
	if err := c.Encoder.Validate(); err != nil {
		return err
	}
	if err := c.Position.Validate(); err != nil {
		return err
	}
	if c.Position.Channels != c.Encoder.Channels {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"position head expects %d channels, encoder produces %d",
			c.Position.Channels, c.Encoder.Channels)
	}
	if c.Position.LMax != c.Encoder.LMax {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"position head lmax %d does not match encoder lmax %d",
			c.Position.LMax, c.Encoder.LMax)
	}
	if c.Position.NumElements != c.Encoder.NumElements {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"position head vocabulary %d does not match encoder vocabulary %d",
			c.Position.NumElements, c.Encoder.NumElements)
	}
	if c.HeadHidden <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"head_hidden must be positive, got %d", c.HeadHidden)
	}
	if c.RadiusRBFVariance <= 0 {
		return errors.Newf(errors.CodeModelConfigInvalid,
			"radius_rbf_variance must be positive, got %v", c.RadiusRBFVariance)
	}
	return nil
}

// Model is the autoregressive generative core. It owns no parameters; every
// forward pass reads them from the Tree it is handed, so the same Model can
// evaluate any number of parameter sets.
type Model struct {
	cfg     Config
	enc     encoder.Encoder
	focus   heads.FocusHead
	species heads.SpeciesHead
	posHead heads.PositionHead
	grid    *irreps.Grid
	radii   []float64
}

// New assembles a model from its configuration.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enc, err := encoder.New(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	grid, err := irreps.NewGrid(cfg.Encoder.LMax, cfg.ResBeta, cfg.ResAlpha)
	if err != nil {
		return nil, err
	}
	return &Model{
		cfg: cfg,
		enc: enc,
		focus: heads.FocusHead{
			Channels: cfg.Encoder.Channels,
			Hidden:   cfg.HeadHidden,
		},
		species: heads.SpeciesHead{
			Channels:    cfg.Encoder.Channels,
			Hidden:      cfg.HeadHidden,
			NumElements: cfg.Encoder.NumElements,
		},
		posHead: heads.PositionHead{Cfg: cfg.Position},
		grid:    grid,
		radii:   cfg.Position.Radii(),
	}, nil
}

// Config returns the configuration the model was assembled from.
func (m *Model) Config() Config { return m.cfg }

// Radii returns the position head's radius bin centres.
func (m *Model) Radii() []float64 { return m.radii }

// Grid returns the angular integration grid.
func (m *Model) Grid() *irreps.Grid { return m.grid }

// InitParams builds a fresh parameter tree for this architecture,
// deterministic in the seed.
func (m *Model) InitParams(seed int64) *nn.Tree {
	tree := nn.NewTree()
	rng := rand.New(rand.NewSource(seed))
	m.enc.Init(tree, rng)
	m.focus.Init(tree, rng)
	m.species.Init(tree, rng)
	m.posHead.Init(tree, rng)
	return tree
}
