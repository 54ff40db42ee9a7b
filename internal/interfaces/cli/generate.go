package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolForge-Engine/internal/dataset"
	"github.com/turtacn/MolForge-Engine/internal/generation"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/model"
	"github.com/turtacn/MolForge-Engine/internal/training"
)

// newGenerateCmd builds the generate subcommand: restore parameters from a
// checkpoint and grow molecules, writing them out as XYZ.
func newGenerateCmd() *cobra.Command {
	var workdir string
	var checkpoint string
	var outPath string
	var numMolecules int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate molecules from a trained checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if workdir != "" {
				cfg.Training.Workdir = workdir
			}
			if numMolecules > 0 {
				cfg.Sampling.NumMolecules = numMolecules
			}
			if cmd.Flags().Changed("seed") {
				cfg.Sampling.Seed = seed
			}
			if err := startMetrics(cliCtx); err != nil {
				return err
			}

			store, err := training.NewStore(cfg.Training.Workdir)
			if err != nil {
				return err
			}
			tree, step, err := store.LoadParams(checkpoint)
			if err != nil {
				return err
			}
			cliCtx.Logger.Info("checkpoint restored",
				logging.String("checkpoint", checkpoint),
				logging.Int("step", step))

			m, err := model.New(model.FromAppConfig(cfg))
			if err != nil {
				return err
			}

			gen, err := generation.NewGenerator(cfg.Sampling, m, tree,
				generation.SeedSpeciesFor(cfg.Dataset.Elements),
				len(cfg.Dataset.Elements), cfg.Dataset.NNCutoff,
				cliCtx.Logger, cliCtx.Metrics)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			molecules, err := gen.Generate(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, createErr := os.Create(outPath)
				if createErr != nil {
					return createErr
				}
				defer f.Close()
				out = f
			}
			for _, mol := range molecules {
				symbols, symErr := mol.Symbols(cfg.Dataset.Elements)
				if symErr != nil {
					return symErr
				}
				comment := fmt.Sprintf("molforge id=%s stopped=%t", mol.ID, mol.Stopped)
				if writeErr := dataset.WriteXYZ(out, symbols, mol.Positions, comment); writeErr != nil {
					return writeErr
				}
			}

			cliCtx.Logger.Info("generation complete",
				logging.Int("molecules", len(molecules)),
				logging.String("output", outPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&workdir, "workdir", "", "training workdir holding checkpoints (overrides config)")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "params_best.bin", "checkpoint file name inside workdir/checkpoints")
	cmd.Flags().StringVarP(&outPath, "out", "O", "", "output XYZ file (default: stdout)")
	cmd.Flags().IntVarP(&numMolecules, "num", "n", 0, "number of molecules (overrides config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "sampling seed (overrides config)")
	return cmd
}
