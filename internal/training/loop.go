package training

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/dataset"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/model/nn"
	"github.com/turtacn/MolForge-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Trainer — the optimization run loop
// ─────────────────────────────────────────────────────────────────────────────

// Trainer runs the optimization loop: sample a fragment batch, estimate the
// gradient of the teacher-forced loss, apply an Adam update, and periodically
// evaluate and checkpoint.
type Trainer struct {
	cfg     config.TrainingConfig
	model   *model.Model
	data    *dataset.Dataset
	store   *Store
	log     logging.Logger
	metrics *prometheus.EngineMetrics
}

// Result summarizes one finished run.
type Result struct {
	RunID     string
	Steps     int
	FinalLoss model.LossParts
	BestLoss  float64
	BestStep  int
	Params    *nn.Tree
}

// NewTrainer wires a trainer. log and metrics may be nil.
func NewTrainer(cfg config.TrainingConfig, m *model.Model, data *dataset.Dataset,
	store *Store, log logging.Logger, metrics *prometheus.EngineMetrics) *Trainer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Trainer{
		cfg:     cfg,
		model:   m,
		data:    data,
		store:   store,
		log:     log.Named("training"),
		metrics: metrics,
	}
}

// Run executes the configured number of steps, starting from freshly
// initialized parameters. It stops early when ctx is cancelled, returning
// the progress made so far.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	tree := t.model.InitParams(t.cfg.Seed)

	t.log.Info("run started",
		logging.String("run_id", runID),
		logging.Int("steps", t.cfg.Steps),
		logging.Int("batch_size", t.cfg.BatchSize),
		logging.Int("num_params", tree.NumParams()),
		logging.Int("fragments", t.data.NumFragments()))

	estimator := SPSA{Perturbation: t.cfg.PerturbationSize}
	opt := NewAdam(t.cfg.LearningRate, t.cfg.Beta1, t.cfg.Beta2, t.cfg.Epsilon)

	res := &Result{RunID: runID, BestLoss: math.Inf(1), Params: tree}
	var lastParts model.LossParts

	for step := 1; step <= t.cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			t.log.Warn("run cancelled",
				logging.String("run_id", runID),
				logging.Int("step", step-1))
			res.Steps = step - 1
			res.FinalLoss = lastParts
			return res, ctx.Err()
		default:
		}

		started := time.Now()
		batch, err := t.data.SampleBatch(rng, t.cfg.BatchSize)
		if err != nil {
			t.recordError("dataset", err)
			return nil, err
		}
		if t.metrics != nil {
			t.metrics.BatchNodeCount.WithLabelValues().Observe(float64(batch.NumNodes()))
		}

		var parts model.LossParts
		lossFn := func(candidate *nn.Tree) (float64, error) {
			p, lerr := t.model.Loss(candidate, batch)
			if lerr != nil {
				return 0, lerr
			}
			return p.Total(), nil
		}

		grads, _, err := estimator.Estimate(tree, rng, lossFn)
		if err != nil {
			t.recordError("estimator", err)
			return nil, err
		}
		if err := opt.Step(tree, grads); err != nil {
			t.recordError("optimizer", err)
			return nil, err
		}

		parts, err = t.model.Loss(tree, batch)
		if err != nil {
			t.recordError("loss", err)
			return nil, err
		}
		lastParts = parts

		if t.metrics != nil {
			prometheus.RecordTrainingStep(t.metrics, time.Since(started),
				parts.Focus, parts.Species, parts.Position)
		}

		if parts.Total() < res.BestLoss {
			res.BestLoss = parts.Total()
			res.BestStep = step
			if t.metrics != nil {
				t.metrics.TrainingBestLoss.WithLabelValues(runID).Set(res.BestLoss)
			}
			if t.store != nil {
				if err := t.store.SaveBest(step, tree); err != nil {
					return nil, err
				}
				if t.metrics != nil {
					t.metrics.CheckpointsTotal.WithLabelValues("best").Inc()
				}
			}
		}

		if t.cfg.EvalEvery > 0 && step%t.cfg.EvalEvery == 0 {
			t.log.Info("progress",
				logging.String("run_id", runID),
				logging.Int("step", step),
				logging.Float64("loss", parts.Total()),
				logging.Float64("focus", parts.Focus),
				logging.Float64("species", parts.Species),
				logging.Float64("position", parts.Position),
				logging.Float64("best", res.BestLoss))
		}

		if t.store != nil && t.cfg.CheckpointEvery > 0 && step%t.cfg.CheckpointEvery == 0 {
			if err := t.store.SaveParams(step, tree); err != nil {
				return nil, err
			}
			if t.metrics != nil {
				t.metrics.CheckpointsTotal.WithLabelValues("step").Inc()
			}
			t.log.Debug("checkpoint written",
				logging.String("run_id", runID),
				logging.Int("step", step))
		}
	}

	res.Steps = t.cfg.Steps
	res.FinalLoss = lastParts
	t.log.Info("run finished",
		logging.String("run_id", runID),
		logging.Int("steps", res.Steps),
		logging.Float64("final_loss", lastParts.Total()),
		logging.Float64("best_loss", res.BestLoss),
		logging.Int("best_step", res.BestStep))
	return res, nil
}

func (t *Trainer) recordError(component string, err error) {
	t.log.Error("step failed",
		logging.String("component", component),
		logging.Err(err))
	if t.metrics != nil {
		prometheus.RecordError(t.metrics, component, string(errors.GetCode(err)))
	}
}
