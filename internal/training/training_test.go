package training

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/dataset"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/model/encoder"
	"github.com/turtacn/MolForge-Engine/internal/model/heads"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
	"github.com/turtacn/MolForge-Engine/pkg/types/fragment"
)

// ─────────────────────────────────────────────────────────────────────────────
// Adam
// ─────────────────────────────────────────────────────────────────────────────

func singleParamTree(values ...float64) *nn.Tree {
	tree := nn.NewTree()
	tree.Set("w", &nn.Tensor{Shape: []int{len(values)}, Data: values})
	return tree
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	tree := singleParamTree(1.0, -1.0)
	opt := NewAdam(0.1, 0.9, 0.999, 1e-8)

	require.NoError(t, opt.Step(tree, Gradient{"w": {2.0, -3.0}}))

	w, err := tree.Get("w")
	require.NoError(t, err)
	assert.Less(t, w.Data[0], 1.0)
	assert.Greater(t, w.Data[1], -1.0)
	assert.Equal(t, 1, opt.StepCount())
}

func TestAdamFirstStepSizeIsLearningRate(t *testing.T) {
	// With bias correction, the first update has magnitude close to lr for
	// any nonzero gradient.
	tree := singleParamTree(0.0)
	opt := NewAdam(0.05, 0.9, 0.999, 1e-8)
	require.NoError(t, opt.Step(tree, Gradient{"w": {7.5}}))

	w, err := tree.Get("w")
	require.NoError(t, err)
	assert.InDelta(t, -0.05, w.Data[0], 1e-6)
}

func TestAdamRejectsMissingGradient(t *testing.T) {
	tree := singleParamTree(1.0)
	opt := NewAdam(0.1, 0.9, 0.999, 1e-8)
	err := opt.Step(tree, Gradient{})
	assert.True(t, errors.IsCode(err, errors.CodeModelParamMissing))
}

func TestAdamRejectsShapeMismatch(t *testing.T) {
	tree := singleParamTree(1.0, 2.0)
	opt := NewAdam(0.1, 0.9, 0.999, 1e-8)
	err := opt.Step(tree, Gradient{"w": {1.0}})
	assert.True(t, errors.IsCode(err, errors.CodeModelShapeMismatch))
}

// ─────────────────────────────────────────────────────────────────────────────
// SPSA
// ─────────────────────────────────────────────────────────────────────────────

func sumOfSquares(tree *nn.Tree) (float64, error) {
	w, err := tree.Get("w")
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, x := range w.Data {
		total += x * x
	}
	return total, nil
}

func TestSPSAEstimateAlignsWithGradient(t *testing.T) {
	tree := singleParamTree(1.0, -2.0, 0.5, 3.0)
	est := SPSA{Perturbation: 1e-3}

	grads, avgLoss, err := est.Estimate(tree, rand.New(rand.NewSource(4)), sumOfSquares)
	require.NoError(t, err)
	assert.InDelta(t, 14.25, avgLoss, 1e-3)

	// The estimate is a rank-one projection of the true gradient, so its dot
	// product with the true gradient (2x) is non-negative by construction.
	truth := []float64{2.0, -4.0, 1.0, 6.0}
	dot := 0.0
	for i, g := range grads["w"] {
		dot += g * truth[i]
	}
	assert.Greater(t, dot, 0.0)
}

func TestSPSALeavesTreeUntouched(t *testing.T) {
	tree := singleParamTree(1.0, 2.0)
	est := SPSA{Perturbation: 1e-2}
	_, _, err := est.Estimate(tree, rand.New(rand.NewSource(1)), sumOfSquares)
	require.NoError(t, err)

	w, err := tree.Get("w")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 2.0}, w.Data)
}

func TestSPSADeterministic(t *testing.T) {
	tree := singleParamTree(1.0, -2.0, 0.5)
	est := SPSA{Perturbation: 1e-3}

	a, _, err := est.Estimate(tree, rand.New(rand.NewSource(11)), sumOfSquares)
	require.NoError(t, err)
	b, _, err := est.Estimate(tree, rand.New(rand.NewSource(11)), sumOfSquares)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSPSARejectsBadPerturbation(t *testing.T) {
	tree := singleParamTree(1.0)
	_, _, err := SPSA{Perturbation: 0}.Estimate(tree, rand.New(rand.NewSource(1)), sumOfSquares)
	assert.True(t, errors.IsCode(err, errors.CodeModelConfigInvalid))
}

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

func TestStoreParamsRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	tree := nn.NewTree()
	tree.Set("a/weight", &nn.Tensor{Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}})
	tree.Set("a/bias", &nn.Tensor{Shape: []int{2}, Data: []float64{-1, 1}})

	require.NoError(t, store.SaveParams(42, tree))

	loaded, step, err := store.LoadParams(StepFileName(42))
	require.NoError(t, err)
	assert.Equal(t, 42, step)
	require.Equal(t, tree.NumParams(), loaded.NumParams())
	for _, leaf := range tree.Leaves() {
		got, err := loaded.Get(leaf.Path)
		require.NoError(t, err)
		assert.Equal(t, leaf.Tensor.Shape, got.Shape)
		assert.Equal(t, leaf.Tensor.Data, got.Data)
	}
}

func TestStoreBestRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	tree := singleParamTree(3.14)
	require.NoError(t, store.SaveBest(7, tree))

	loaded, step, err := store.LoadBest()
	require.NoError(t, err)
	assert.Equal(t, 7, step)
	w, err := loaded.Get("w")
	require.NoError(t, err)
	assert.Equal(t, []float64{3.14}, w.Data)
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, _, err = store.LoadParams(StepFileName(1))
	assert.True(t, errors.IsCode(err, errors.CodeCheckpointNotFound))
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, "checkpoints", StepFileName(5))
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0o644))

	_, _, err = store.LoadParams(StepFileName(5))
	assert.True(t, errors.IsCode(err, errors.CodeCheckpointCorrupt))
}

func TestStoreLatestStep(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LatestStep()
	assert.True(t, errors.IsCode(err, errors.CodeCheckpointNotFound))

	tree := singleParamTree(1.0)
	require.NoError(t, store.SaveParams(100, tree))
	require.NoError(t, store.SaveParams(250, tree))
	require.NoError(t, store.SaveBest(250, tree))

	latest, err := store.LatestStep()
	require.NoError(t, err)
	assert.Equal(t, 250, latest)
}

func TestStoreConfigRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Dataset.Path = "mols.xyz"
	require.NoError(t, store.SaveConfig(cfg))

	loaded, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, loaded.Model)
	assert.Equal(t, cfg.Position, loaded.Position)
	assert.Equal(t, cfg.Dataset, loaded.Dataset)
	assert.Equal(t, cfg.Training, loaded.Training)
}

// ─────────────────────────────────────────────────────────────────────────────
// Trainer
// ─────────────────────────────────────────────────────────────────────────────

func tinyModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New(model.Config{
		Encoder: encoder.Config{
			Variant:     encoder.VariantMLP,
			NumElements: 5,
			Channels:    4,
			LMax:        1,
			Rounds:      1,
			Cutoff:      5.0,
			NumRBF:      4,
			HiddenDim:   8,
		},
		Position: heads.PositionConfig{
			Variant:     heads.PositionFactorized,
			Channels:    4,
			PosChannels: 2,
			LMax:        1,
			NumRadii:    4,
			MinRadius:   0.75,
			MaxRadius:   2.03,
			Hidden:      8,
			NumElements: 5,
		},
		HeadHidden:        8,
		ResBeta:           4,
		ResAlpha:          3,
		RadiusRBFVariance: 1e-2,
	})
	require.NoError(t, err)
	return m
}

func tinyDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	mols := []*dataset.Molecule{
		{
			Symbols: []string{"O", "H", "H"},
			Positions: []fragment.Vec3{
				{}, {X: 0.957}, {X: -0.24, Y: 0.927},
			},
		},
		{
			Symbols:   []string{"H", "H"},
			Positions: []fragment.Vec3{{}, {X: 0.74}},
		},
	}
	ds, err := dataset.FromMolecules(dataset.Config{
		Elements:    []string{"H", "C", "N", "O", "F"},
		NNCutoff:    5.0,
		NNTolerance: 0.125,
		MaxNodes:    64,
		MaxEdges:    256,
		MaxGraphs:   16,
	}, mols, rand.New(rand.NewSource(1)), logging.NewNopLogger())
	require.NoError(t, err)
	return ds
}

func TestTrainerRun(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	trainer := NewTrainer(config.TrainingConfig{
		Steps:            3,
		BatchSize:        2,
		LearningRate:     1e-3,
		Beta1:            0.9,
		Beta2:            0.999,
		Epsilon:          1e-8,
		PerturbationSize: 1e-2,
		EvalEvery:        2,
		CheckpointEvery:  2,
		Seed:             7,
	}, tinyModel(t), tinyDataset(t), store, logging.NewNopLogger(), nil)

	res, err := trainer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps)
	assert.False(t, math.IsNaN(res.FinalLoss.Total()))
	assert.False(t, math.IsInf(res.BestLoss, 0))
	assert.NotEmpty(t, res.RunID)

	// The cadence checkpoint at step 2 and the best checkpoint must exist.
	latest, err := store.LatestStep()
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
	_, _, err = store.LoadBest()
	require.NoError(t, err)
}

func TestTrainerRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trainer := NewTrainer(config.TrainingConfig{
		Steps:            100,
		BatchSize:        2,
		LearningRate:     1e-3,
		Beta1:            0.9,
		Beta2:            0.999,
		Epsilon:          1e-8,
		PerturbationSize: 1e-2,
		Seed:             7,
	}, tinyModel(t), tinyDataset(t), nil, nil, nil)

	res, err := trainer.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Steps)
}
