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

// newTrainCmd builds the train subcommand: load the dataset, assemble the
// model, and run the optimization loop until done or interrupted.
func newTrainCmd() *cobra.Command {
	var datasetPath string
	var workdir string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the generative model on an XYZ dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if datasetPath != "" {
				cfg.Dataset.Path = datasetPath
			}
			if workdir != "" {
				cfg.Training.Workdir = workdir
			}
			if cfg.Dataset.Path == "" {
				return fmt.Errorf("no dataset: set dataset.path or pass --dataset")
			}
			if err := startMetrics(cliCtx); err != nil {
				return err
			}

			m, err := model.New(model.FromAppConfig(cfg))
			if err != nil {
				return err
			}

			ds, err := dataset.Load(dataset.Config{
				Path:        cfg.Dataset.Path,
				Elements:    cfg.Dataset.Elements,
				NNCutoff:    cfg.Dataset.NNCutoff,
				NNTolerance: cfg.Dataset.NNTolerance,
				MaxNodes:    cfg.Dataset.MaxNodes,
				MaxEdges:    cfg.Dataset.MaxEdges,
				MaxGraphs:   cfg.Dataset.MaxGraphs,
			}, rand.New(rand.NewSource(cfg.Training.Seed)), cliCtx.Logger)
			if err != nil {
				return err
			}
			cliCtx.Metrics.FragmentsBuiltTotal.WithLabelValues("fragment").
				Add(float64(ds.NumFragments()))

			store, err := training.NewStore(cfg.Training.Workdir)
			if err != nil {
				return err
			}
			if err := store.SaveConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			trainer := training.NewTrainer(cfg.Training, m, ds, store,
				cliCtx.Logger, cliCtx.Metrics)
			res, err := trainer.Run(ctx)
			if err != nil {
				return err
			}

			cliCtx.Logger.Info("training complete",
				logging.String("run_id", res.RunID),
				logging.Int("steps", res.Steps),
				logging.Float64("best_loss", res.BestLoss),
				logging.Int("best_step", res.BestStep),
				logging.String("workdir", store.Workdir()))
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s finished: %d steps, best loss %.6f at step %d\n",
				res.RunID, res.Steps, res.BestLoss, res.BestStep)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "XYZ dataset path (overrides config)")
	cmd.Flags().StringVar(&workdir, "workdir", "", "training workdir (overrides config)")
	return cmd
}
