package config

import "github.com/turtacn/MolForge-Engine/pkg/types/fragment"

// ApplyDefaults fills in sane defaults for every field left at its zero
// value.  It never overrides a value that was set explicitly via file or
// environment.
func ApplyDefaults(c *Config) {
	// Model
	if c.Model.EncoderVariant == "" {
		c.Model.EncoderVariant = "equivariant"
	}
	if c.Model.Channels == 0 {
		c.Model.Channels = 64
	}
	if c.Model.LMax == 0 {
		c.Model.LMax = 2
	}
	if c.Model.Rounds == 0 {
		c.Model.Rounds = 3
	}
	if c.Model.Cutoff == 0 {
		c.Model.Cutoff = 5.0
	}
	if c.Model.NumRBF == 0 {
		c.Model.NumRBF = 32
	}
	if c.Model.HiddenDim == 0 {
		c.Model.HiddenDim = 128
	}
	if c.Model.HeadHidden == 0 {
		c.Model.HeadHidden = 128
	}
	if c.Model.Seed == 0 {
		c.Model.Seed = 42
	}

	// Position
	if c.Position.Variant == "" {
		c.Position.Variant = "factorized"
	}
	if c.Position.PosChannels == 0 {
		c.Position.PosChannels = 2
	}
	if c.Position.NumRadii == 0 {
		c.Position.NumRadii = 64
	}
	if c.Position.MinRadius == 0 {
		c.Position.MinRadius = 0.75
	}
	if c.Position.MaxRadius == 0 {
		c.Position.MaxRadius = 2.03
	}
	if c.Position.ResBeta == 0 {
		c.Position.ResBeta = 30
	}
	if c.Position.ResAlpha == 0 {
		c.Position.ResAlpha = 51
	}
	if c.Position.RadiusRBFVariance == 0 {
		c.Position.RadiusRBFVariance = 1e-3
	}

	// Dataset
	if len(c.Dataset.Elements) == 0 {
		c.Dataset.Elements = append([]string(nil), fragment.DefaultElements...)
	}
	if c.Dataset.NNCutoff == 0 {
		c.Dataset.NNCutoff = 5.0
	}
	if c.Dataset.NNTolerance == 0 {
		c.Dataset.NNTolerance = 0.125
	}
	if c.Dataset.MaxNodes == 0 {
		c.Dataset.MaxNodes = 512
	}
	if c.Dataset.MaxEdges == 0 {
		c.Dataset.MaxEdges = 1024
	}
	if c.Dataset.MaxGraphs == 0 {
		c.Dataset.MaxGraphs = 64
	}

	// Training
	if c.Training.Steps == 0 {
		c.Training.Steps = 10000
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 16
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = 1e-3
	}
	if c.Training.Beta1 == 0 {
		c.Training.Beta1 = 0.9
	}
	if c.Training.Beta2 == 0 {
		c.Training.Beta2 = 0.999
	}
	if c.Training.Epsilon == 0 {
		c.Training.Epsilon = 1e-8
	}
	if c.Training.PerturbationSize == 0 {
		c.Training.PerturbationSize = 1e-2
	}
	if c.Training.EvalEvery == 0 {
		c.Training.EvalEvery = 500
	}
	if c.Training.CheckpointEvery == 0 {
		c.Training.CheckpointEvery = 1000
	}
	if c.Training.Workdir == "" {
		c.Training.Workdir = "workdir"
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = 7
	}

	// Sampling
	if c.Sampling.NumMolecules == 0 {
		c.Sampling.NumMolecules = 32
	}
	if c.Sampling.MaxAtoms == 0 {
		c.Sampling.MaxAtoms = 30
	}
	if c.Sampling.Seed == 0 {
		c.Sampling.Seed = 1
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	// Metrics
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}
