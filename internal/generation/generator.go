// Package generation builds molecules atom by atom: starting from a single
// seed atom, it repeatedly runs the model in evaluation mode, materializes
// the sampled focus/species/position decisions, and rebuilds the neighbour
// graph until the model stops or the atom cap is hit.
package generation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/dataset"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/internal/model/sampler"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// ─────────────────────────────────────────────────────────────────────────────
// Generator
// ─────────────────────────────────────────────────────────────────────────────

// Molecule is one finished generation attempt. Stopped reports whether the
// model emitted a stop decision; false means the atom cap cut growth short.
type Molecule struct {
	ID        string
	Species   []int
	Positions []fragment.Vec3
	Stopped   bool
}

// NumAtoms returns the number of atoms placed.
func (m *Molecule) NumAtoms() int { return len(m.Species) }

// Symbols maps the species indices back to element symbols.
func (m *Molecule) Symbols(elements []string) ([]string, error) {
	symbols := make([]string, len(m.Species))
	for i, sp := range m.Species {
		if sp < 0 || sp >= len(elements) {
			return nil, errors.Newf(errors.CodeDataUnknownElement,
				"species index %d outside vocabulary of %d elements", sp, len(elements))
		}
		symbols[i] = elements[sp]
	}
	return symbols, nil
}

// Generator drives autoregressive molecule construction against a fixed
// parameter tree.
type Generator struct {
	cfg         config.SamplingConfig
	model       *model.Model
	tree        *nn.Tree
	seedSpecies int
	numElements int
	nnCutoff    float64
	log         logging.Logger
	metrics     *prometheus.EngineMetrics
}

// NewGenerator wires a generator. The seed atom uses seedSpecies and sits at
// the origin; nnCutoff is the neighbour-graph radius used while growing.
// log and metrics may be nil.
func NewGenerator(cfg config.SamplingConfig, m *model.Model, tree *nn.Tree,
	seedSpecies, numElements int, nnCutoff float64,
	log logging.Logger, metrics *prometheus.EngineMetrics) (*Generator, error) {
	if seedSpecies < 0 || seedSpecies >= numElements {
		return nil, errors.Newf(errors.CodeDataUnknownElement,
			"seed species %d outside vocabulary of %d elements", seedSpecies, numElements)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Generator{
		cfg:         cfg,
		model:       m,
		tree:        tree,
		seedSpecies: seedSpecies,
		numElements: numElements,
		nnCutoff:    nnCutoff,
		log:         log.Named("generation"),
		metrics:     metrics,
	}, nil
}

// Generate produces the configured number of molecules. Each molecule draws
// from its own sub-stream of the run seed, so results do not depend on the
// order molecules are generated in.
func (g *Generator) Generate(ctx context.Context) ([]*Molecule, error) {
	root := sampler.NewStream(g.cfg.Seed)
	molecules := make([]*Molecule, 0, g.cfg.NumMolecules)

	for i := 0; i < g.cfg.NumMolecules; i++ {
		select {
		case <-ctx.Done():
			return molecules, ctx.Err()
		default:
		}

		mol, err := g.GenerateOne(root.ChildIndex(i))
		if err != nil {
			if g.metrics != nil {
				prometheus.RecordSamplingAnomaly(g.metrics, string(errors.GetCode(err)))
			}
			return molecules, err
		}
		molecules = append(molecules, mol)
	}
	return molecules, nil
}

// GenerateOne grows a single molecule from the seed atom, drawing every
// decision from stream. Growth ends on a stop decision or at MaxAtoms.
func (g *Generator) GenerateOne(stream sampler.Stream) (*Molecule, error) {
	mol := &Molecule{
		ID:        uuid.NewString(),
		Species:   []int{g.seedSpecies},
		Positions: []fragment.Vec3{{}},
	}

	for step := 0; mol.NumAtoms() < g.cfg.MaxAtoms; step++ {
		started := time.Now()
		out, err := g.predictStep(mol, stream.ChildIndex(step))
		if err != nil {
			return nil, err
		}
		if g.metrics != nil {
			g.metrics.GenerationStepDuration.WithLabelValues("step").Observe(time.Since(started).Seconds())
		}

		if out.Stopped[0] {
			mol.Stopped = true
			if g.metrics != nil {
				g.metrics.GenerationStepsTotal.WithLabelValues("stop").Inc()
			}
			break
		}

		mol.Species = append(mol.Species, out.Species[0])
		mol.Positions = append(mol.Positions, out.Positions[0])
		if g.metrics != nil {
			g.metrics.GenerationStepsTotal.WithLabelValues("grow").Inc()
		}
	}

	if g.metrics != nil {
		prometheus.RecordMolecule(g.metrics, mol.NumAtoms(), mol.Stopped)
	}
	g.log.Debug("molecule finished",
		logging.String("molecule_id", mol.ID),
		logging.Int("atoms", mol.NumAtoms()),
		logging.Bool("stopped", mol.Stopped))
	return mol, nil
}

// predictStep runs one evaluation-mode forward pass over the current partial
// molecule with freshly rebuilt neighbour edges.
func (g *Generator) predictStep(mol *Molecule, stream sampler.Stream) (*model.Output, error) {
	senders, receivers := dataset.NeighborEdges(mol.Positions, g.nnCutoff)
	frag := &fragment.Fragment{
		Species:   mol.Species,
		Positions: mol.Positions,
		Senders:   senders,
		Receivers: receivers,
	}
	batch, err := fragment.NewBatch([]*fragment.Fragment{frag}, g.numElements, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return g.model.Predict(g.tree, batch, model.ModeEvaluation, &stream)
}

// SeedSpeciesFor picks the generation seed element: carbon when the
// vocabulary has it, otherwise the first element.
func SeedSpeciesFor(elements []string) int {
	for i, sym := range elements {
		if sym == "C" {
			return i
		}
	}
	return 0
}
