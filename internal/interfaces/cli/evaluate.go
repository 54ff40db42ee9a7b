package cli

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolForge-Engine/internal/dataset"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/training"
)

// newEvaluateCmd builds the evaluate subcommand: restore a checkpoint and
// report the teacher-forced loss over freshly sampled batches.
func newEvaluateCmd() *cobra.Command {
	var workdir string
	var checkpoint string
	var numBatches int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a checkpoint's loss on a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if workdir != "" {
				cfg.Training.Workdir = workdir
			}
			if cfg.Dataset.Path == "" {
				return fmt.Errorf("no dataset: set dataset.path in the config")
			}

			store, err := training.NewStore(cfg.Training.Workdir)
			if err != nil {
				return err
			}
			tree, step, err := store.LoadParams(checkpoint)
			if err != nil {
				return err
			}

			m, err := model.New(model.FromAppConfig(cfg))
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(cfg.Training.Seed))
			ds, err := dataset.Load(dataset.Config{
				Path:        cfg.Dataset.Path,
				Elements:    cfg.Dataset.Elements,
				NNCutoff:    cfg.Dataset.NNCutoff,
				NNTolerance: cfg.Dataset.NNTolerance,
				MaxNodes:    cfg.Dataset.MaxNodes,
				MaxEdges:    cfg.Dataset.MaxEdges,
				MaxGraphs:   cfg.Dataset.MaxGraphs,
			}, rng, cliCtx.Logger)
			if err != nil {
				return err
			}

			var total model.LossParts
			for i := 0; i < numBatches; i++ {
				batch, batchErr := ds.SampleBatch(rng, cfg.Training.BatchSize)
				if batchErr != nil {
					return batchErr
				}
				parts, lossErr := m.Loss(tree, batch)
				if lossErr != nil {
					return lossErr
				}
				total.Focus += parts.Focus
				total.Species += parts.Species
				total.Position += parts.Position
			}
			n := float64(numBatches)
			total.Focus /= n
			total.Species /= n
			total.Position /= n

			cliCtx.Logger.Info("evaluation complete",
				logging.String("checkpoint", checkpoint),
				logging.Int("step", step),
				logging.Int("batches", numBatches),
				logging.Float64("loss", total.Total()))
			fmt.Fprintf(cmd.OutOrStdout(),
				"checkpoint %s (step %d): loss %.6f (focus %.6f, species %.6f, position %.6f)\n",
				checkpoint, step, total.Total(), total.Focus, total.Species, total.Position)
			return nil
		},
	}

	cmd.Flags().StringVar(&workdir, "workdir", "", "training workdir holding checkpoints (overrides config)")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "params_best.bin", "checkpoint file name inside workdir/checkpoints")
	cmd.Flags().IntVar(&numBatches, "batches", 16, "number of batches to average over")
	return cmd
}
