// Package config defines all configuration structures for the MolForge
// engine.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import "fmt"

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ModelConfig holds the architecture hyperparameters of the generative core.
type ModelConfig struct {
	EncoderVariant string  `mapstructure:"encoder_variant" yaml:"encoder_variant"` // "mlp" | "graphconv" | "equivariant"
	Channels       int     `mapstructure:"channels" yaml:"channels"`
	LMax           int     `mapstructure:"lmax" yaml:"lmax"`
	Rounds         int     `mapstructure:"rounds" yaml:"rounds"`
	Cutoff         float64 `mapstructure:"cutoff" yaml:"cutoff"`
	NumRBF         int     `mapstructure:"num_rbf" yaml:"num_rbf"`
	HiddenDim      int     `mapstructure:"hidden_dim" yaml:"hidden_dim"`
	HeadHidden     int     `mapstructure:"head_hidden" yaml:"head_hidden"`
	Seed           int64   `mapstructure:"seed" yaml:"seed"`
}

// PositionConfig holds the placement distribution parameters: the radius
// binning and the angular grid resolution.
type PositionConfig struct {
	Variant           string  `mapstructure:"variant" yaml:"variant"` // "joint" | "factorized"
	PosChannels       int     `mapstructure:"pos_channels" yaml:"pos_channels"`
	NumRadii          int     `mapstructure:"num_radii" yaml:"num_radii"`
	MinRadius         float64 `mapstructure:"min_radius" yaml:"min_radius"`
	MaxRadius         float64 `mapstructure:"max_radius" yaml:"max_radius"`
	ResBeta           int     `mapstructure:"res_beta" yaml:"res_beta"`
	ResAlpha          int     `mapstructure:"res_alpha" yaml:"res_alpha"`
	RadiusRBFVariance float64 `mapstructure:"radius_rbf_variance" yaml:"radius_rbf_variance"`
}

// DatasetConfig holds the molecule source and fragment construction
// parameters.
type DatasetConfig struct {
	Path        string   `mapstructure:"path" yaml:"path"`
	Elements    []string `mapstructure:"elements" yaml:"elements"`
	NNCutoff    float64  `mapstructure:"nn_cutoff" yaml:"nn_cutoff"`
	NNTolerance float64  `mapstructure:"nn_tolerance" yaml:"nn_tolerance"`
	MaxNodes    int      `mapstructure:"max_nodes" yaml:"max_nodes"`
	MaxEdges    int      `mapstructure:"max_edges" yaml:"max_edges"`
	MaxGraphs   int      `mapstructure:"max_graphs" yaml:"max_graphs"`
}

// TrainingConfig holds optimizer and run-loop parameters.
type TrainingConfig struct {
	Steps            int     `mapstructure:"steps" yaml:"steps"`
	BatchSize        int     `mapstructure:"batch_size" yaml:"batch_size"`
	LearningRate     float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Beta1            float64 `mapstructure:"beta1"`
	Beta2            float64 `mapstructure:"beta2"`
	Epsilon          float64 `mapstructure:"epsilon" yaml:"epsilon"`
	PerturbationSize float64 `mapstructure:"perturbation_size" yaml:"perturbation_size"`
	EvalEvery        int     `mapstructure:"eval_every" yaml:"eval_every"`
	CheckpointEvery  int     `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	Workdir          string  `mapstructure:"workdir" yaml:"workdir"`
	Seed             int64   `mapstructure:"seed" yaml:"seed"`
}

// SamplingConfig holds molecule generation parameters.
type SamplingConfig struct {
	NumMolecules int    `mapstructure:"num_molecules" yaml:"num_molecules"`
	MaxAtoms     int    `mapstructure:"max_atoms" yaml:"max_atoms"`
	Seed         uint64 `mapstructure:"seed" yaml:"seed"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level" yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format" yaml:"format"` // "json" | "text"
	Output           string `mapstructure:"output" yaml:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller" yaml:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace" yaml:"enable_stacktrace"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the engine.  Every component
// reads its settings from the relevant sub-struct.
type Config struct {
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Position PositionConfig `mapstructure:"position" yaml:"position"`
	Dataset  DatasetConfig  `mapstructure:"dataset" yaml:"dataset"`
	Training TrainingConfig `mapstructure:"training" yaml:"training"`
	Sampling SamplingConfig `mapstructure:"sampling" yaml:"sampling"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	// Model
	switch c.Model.EncoderVariant {
	case "mlp", "graphconv", "equivariant":
	default:
		return fmt.Errorf("config: model.encoder_variant %q is invalid; expected mlp|graphconv|equivariant", c.Model.EncoderVariant)
	}
	if c.Model.Channels < 1 {
		return fmt.Errorf("config: model.channels must be ≥ 1, got %d", c.Model.Channels)
	}
	if c.Model.LMax < 0 {
		return fmt.Errorf("config: model.lmax must be ≥ 0, got %d", c.Model.LMax)
	}
	if c.Model.Rounds < 1 {
		return fmt.Errorf("config: model.rounds must be ≥ 1, got %d", c.Model.Rounds)
	}
	if c.Model.Cutoff <= 0 {
		return fmt.Errorf("config: model.cutoff must be positive, got %v", c.Model.Cutoff)
	}
	if c.Model.NumRBF < 2 {
		return fmt.Errorf("config: model.num_rbf must be ≥ 2, got %d", c.Model.NumRBF)
	}

	// Position
	switch c.Position.Variant {
	case "joint", "factorized":
	default:
		return fmt.Errorf("config: position.variant %q is invalid; expected joint|factorized", c.Position.Variant)
	}
	if c.Position.NumRadii < 2 {
		return fmt.Errorf("config: position.num_radii must be ≥ 2, got %d", c.Position.NumRadii)
	}
	if c.Position.MinRadius <= 0 || c.Position.MaxRadius <= c.Position.MinRadius {
		return fmt.Errorf("config: position radius range [%v, %v] is invalid",
			c.Position.MinRadius, c.Position.MaxRadius)
	}
	if c.Position.ResBeta < c.Model.LMax+1 {
		return fmt.Errorf("config: position.res_beta %d cannot resolve lmax %d", c.Position.ResBeta, c.Model.LMax)
	}
	if c.Position.ResAlpha < 2*c.Model.LMax+1 {
		return fmt.Errorf("config: position.res_alpha %d cannot resolve lmax %d", c.Position.ResAlpha, c.Model.LMax)
	}
	if c.Position.RadiusRBFVariance <= 0 {
		return fmt.Errorf("config: position.radius_rbf_variance must be positive, got %v", c.Position.RadiusRBFVariance)
	}

	// Dataset
	if len(c.Dataset.Elements) == 0 {
		return fmt.Errorf("config: dataset.elements must list at least one element symbol")
	}
	if c.Dataset.NNCutoff <= 0 {
		return fmt.Errorf("config: dataset.nn_cutoff must be positive, got %v", c.Dataset.NNCutoff)
	}
	if c.Dataset.NNTolerance < 0 {
		return fmt.Errorf("config: dataset.nn_tolerance must be ≥ 0, got %v", c.Dataset.NNTolerance)
	}
	if c.Dataset.MaxNodes < 1 || c.Dataset.MaxEdges < 1 || c.Dataset.MaxGraphs < 1 {
		return fmt.Errorf("config: dataset capacities must be ≥ 1")
	}

	// Training
	if c.Training.Steps < 1 {
		return fmt.Errorf("config: training.steps must be ≥ 1, got %d", c.Training.Steps)
	}
	if c.Training.BatchSize < 1 {
		return fmt.Errorf("config: training.batch_size must be ≥ 1, got %d", c.Training.BatchSize)
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("config: training.learning_rate must be positive, got %v", c.Training.LearningRate)
	}
	if c.Training.PerturbationSize <= 0 {
		return fmt.Errorf("config: training.perturbation_size must be positive, got %v", c.Training.PerturbationSize)
	}
	if c.Training.Workdir == "" {
		return fmt.Errorf("config: training.workdir is required")
	}

	// Sampling
	if c.Sampling.NumMolecules < 1 {
		return fmt.Errorf("config: sampling.num_molecules must be ≥ 1, got %d", c.Sampling.NumMolecules)
	}
	if c.Sampling.MaxAtoms < 2 {
		return fmt.Errorf("config: sampling.max_atoms must be ≥ 2, got %d", c.Sampling.MaxAtoms)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}
