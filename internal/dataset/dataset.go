package dataset

import (
	"math/rand"

	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// Config carries everything needed to build a Dataset from a molecule file.
type Config struct {
	Path        string
	Elements    []string
	NNCutoff    float64
	NNTolerance float64
	MaxNodes    int
	MaxEdges    int
	MaxGraphs   int
}

// Dataset holds the full pool of teacher-forced fragments and samples
// batches from it.
type Dataset struct {
	cfg       Config
	fragments []*fragment.Fragment
	log       logging.Logger
}

// Load parses the molecule file, resolves species against the vocabulary,
// and decomposes every molecule into fragments. Fragment construction is
// deterministic in rng.
func Load(cfg Config, rng *rand.Rand, log logging.Logger) (*Dataset, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	mols, err := LoadXYZFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return FromMolecules(cfg, mols, rng, log)
}

// FromMolecules builds a Dataset from already-parsed molecules.
func FromMolecules(cfg Config, mols []*Molecule, rng *rand.Rand, log logging.Logger) (*Dataset, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	fcfg := FragmentConfig{NNCutoff: cfg.NNCutoff, NNTolerance: cfg.NNTolerance}

	ds := &Dataset{cfg: cfg, log: log.Named("dataset")}
	for _, mol := range mols {
		species, err := mol.Species(cfg.Elements)
		if err != nil {
			return nil, err
		}
		frags, err := BuildFragments(species, mol.Positions, fcfg, rng)
		if err != nil {
			return nil, err
		}
		ds.fragments = append(ds.fragments, frags...)
	}
	if len(ds.fragments) == 0 {
		return nil, errors.New(errors.CodeDataFragmentEmpty, "no fragments produced from input")
	}
	ds.log.Info("dataset loaded",
		logging.Int("molecules", len(mols)),
		logging.Int("fragments", len(ds.fragments)))
	return ds, nil
}

// NumFragments returns the fragment pool size.
func (d *Dataset) NumFragments() int { return len(d.fragments) }

// SampleBatch draws batchSize fragments uniformly with replacement and packs
// them into a validated batch.
func (d *Dataset) SampleBatch(rng *rand.Rand, batchSize int) (*fragment.Batch, error) {
	picks := make([]*fragment.Fragment, batchSize)
	for i := range picks {
		picks[i] = d.fragments[rng.Intn(len(d.fragments))]
	}
	return fragment.NewBatch(picks, len(d.cfg.Elements),
		d.cfg.MaxNodes, d.cfg.MaxEdges, d.cfg.MaxGraphs)
}
