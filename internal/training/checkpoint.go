package training

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Store — workdir layout and parameter checkpoints
// ─────────────────────────────────────────────────────────────────────────────

const (
	configFileName = "config.yml"
	checkpointDir  = "checkpoints"
	bestFileName   = "params_best.bin"
	stepFilePrefix = "params_"
	stepFileSuffix = ".bin"
)

// Store owns a training workdir: the configuration snapshot the run was
// started with, and a checkpoints/ directory of serialized parameter trees.
type Store struct {
	workdir string
}

// NewStore creates the workdir layout if needed.
func NewStore(workdir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(workdir, checkpointDir), 0o755); err != nil {
		return nil, errors.New(errors.CodeCheckpointCorrupt, "cannot create workdir").WithCause(err)
	}
	return &Store{workdir: workdir}, nil
}

// Workdir returns the root directory of the store.
func (s *Store) Workdir() string { return s.workdir }

// SaveConfig snapshots the full configuration the run was started with.
func (s *Store) SaveConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.New(errors.CodeCheckpointCorrupt, "cannot encode config snapshot").WithCause(err)
	}
	return os.WriteFile(filepath.Join(s.workdir, configFileName), data, 0o644)
}

// LoadConfig reads back the configuration snapshot of a previous run.
func (s *Store) LoadConfig() (*config.Config, error) {
	data, err := os.ReadFile(filepath.Join(s.workdir, configFileName))
	if os.IsNotExist(err) {
		return nil, errors.Newf(errors.CodeCheckpointNotFound,
			"no config snapshot in %s", s.workdir)
	}
	if err != nil {
		return nil, errors.New(errors.CodeCheckpointCorrupt, "cannot read config snapshot").WithCause(err)
	}
	cfg := &config.Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeCheckpointCorrupt, "cannot decode config snapshot").WithCause(err)
	}
	return cfg, nil
}

// checkpointFile is the on-disk form of a parameter tree. Leaves are stored
// in sorted path order, the same order Tree.Leaves returns.
type checkpointFile struct {
	Step   int
	Paths  []string
	Shapes [][]int
	Data   [][]float64
}

// SaveParams writes the tree as checkpoints/params_<step>.bin.
func (s *Store) SaveParams(step int, tree *nn.Tree) error {
	name := fmt.Sprintf("%s%d%s", stepFilePrefix, step, stepFileSuffix)
	return s.writeTree(filepath.Join(s.workdir, checkpointDir, name), step, tree)
}

// SaveBest writes the tree as checkpoints/params_best.bin, overwriting any
// previous best.
func (s *Store) SaveBest(step int, tree *nn.Tree) error {
	return s.writeTree(filepath.Join(s.workdir, checkpointDir, bestFileName), step, tree)
}

func (s *Store) writeTree(path string, step int, tree *nn.Tree) error {
	file := checkpointFile{Step: step}
	for _, leaf := range tree.Leaves() {
		file.Paths = append(file.Paths, leaf.Path)
		file.Shapes = append(file.Shapes, leaf.Tensor.Shape)
		file.Data = append(file.Data, leaf.Tensor.Data)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.New(errors.CodeCheckpointCorrupt, "cannot create checkpoint file").WithCause(err)
	}
	if err := gob.NewEncoder(f).Encode(file); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.New(errors.CodeCheckpointCorrupt, "cannot encode checkpoint").WithCause(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.New(errors.CodeCheckpointCorrupt, "cannot finish checkpoint file").WithCause(err)
	}
	return os.Rename(tmp, path)
}

// LoadParams reads one checkpoint file back into a fresh tree and reports
// the step it was written at.
func (s *Store) LoadParams(name string) (*nn.Tree, int, error) {
	path := filepath.Join(s.workdir, checkpointDir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, errors.Newf(errors.CodeCheckpointNotFound, "checkpoint %s does not exist", name)
	}
	if err != nil {
		return nil, 0, errors.New(errors.CodeCheckpointCorrupt, "cannot open checkpoint").WithCause(err)
	}
	defer f.Close()

	var file checkpointFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, 0, errors.Newf(errors.CodeCheckpointCorrupt, "checkpoint %s is unreadable", name).WithCause(err)
	}
	if len(file.Paths) != len(file.Shapes) || len(file.Paths) != len(file.Data) {
		return nil, 0, errors.Newf(errors.CodeCheckpointCorrupt,
			"checkpoint %s has inconsistent leaf arrays", name)
	}

	tree := nn.NewTree()
	for i, leafPath := range file.Paths {
		size := 1
		for _, d := range file.Shapes[i] {
			size *= d
		}
		if size != len(file.Data[i]) {
			return nil, 0, errors.Newf(errors.CodeCheckpointCorrupt,
				"checkpoint %s leaf %q has %d values for shape %v",
				name, leafPath, len(file.Data[i]), file.Shapes[i])
		}
		tree.Set(leafPath, &nn.Tensor{Shape: file.Shapes[i], Data: file.Data[i]})
	}
	return tree, file.Step, nil
}

// LoadBest reads checkpoints/params_best.bin.
func (s *Store) LoadBest() (*nn.Tree, int, error) {
	return s.LoadParams(bestFileName)
}

// LatestStep returns the highest step number among the per-step checkpoint
// files, or CKPT_001 when none exist.
func (s *Store) LatestStep() (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.workdir, checkpointDir))
	if err != nil {
		return 0, errors.New(errors.CodeCheckpointNotFound, "cannot list checkpoints").WithCause(err)
	}
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, stepFilePrefix) || !strings.HasSuffix(name, stepFileSuffix) {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, stepFilePrefix), stepFileSuffix)
		step, convErr := strconv.Atoi(raw)
		if convErr != nil {
			continue
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return 0, errors.Newf(errors.CodeCheckpointNotFound, "no checkpoints in %s", s.workdir)
	}
	sort.Ints(steps)
	return steps[len(steps)-1], nil
}

// StepFileName returns the checkpoint file name for one step.
func StepFileName(step int) string {
	return fmt.Sprintf("%s%d%s", stepFilePrefix, step, stepFileSuffix)
}
