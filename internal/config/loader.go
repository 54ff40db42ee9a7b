// Package config provides configuration loading, defaults, and validation
// for the MolForge engine.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "MOLFORGE"

// configKeys lists every settable key. Viper only unmarshals environment
// variables for keys it knows about, so each key is bound explicitly.
var configKeys = []string{
	"model.encoder_variant", "model.channels", "model.lmax", "model.rounds",
	"model.cutoff", "model.num_rbf", "model.hidden_dim", "model.head_hidden",
	"model.seed",
	"position.variant", "position.pos_channels", "position.num_radii",
	"position.min_radius", "position.max_radius", "position.res_beta",
	"position.res_alpha", "position.radius_rbf_variance",
	"dataset.path", "dataset.elements", "dataset.nn_cutoff",
	"dataset.nn_tolerance", "dataset.max_nodes", "dataset.max_edges",
	"dataset.max_graphs",
	"training.steps", "training.batch_size", "training.learning_rate",
	"training.beta1", "training.beta2", "training.epsilon",
	"training.perturbation_size", "training.eval_every",
	"training.checkpoint_every", "training.workdir", "training.seed",
	"sampling.num_molecules", "sampling.max_atoms", "sampling.seed",
	"log.level", "log.format", "log.output", "log.enable_caller",
	"log.enable_stacktrace",
	"metrics.enabled", "metrics.addr", "metrics.path",
}

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, MOLFORGE_ env prefix, automatic env binding, and
// a key replacer that maps "." → "_" so that nested keys like
// "training.workdir" resolve to "MOLFORGE_TRAINING_WORKDIR".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any MOLFORGE_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MOLFORGE_* environment
// variables, with no config file required.
//
// Environment variable naming convention:
//
//	MOLFORGE_<SECTION>_<FIELD>   e.g.  MOLFORGE_MODEL_CHANNELS, MOLFORGE_LOG_LEVEL
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and eval cadence;
// callers are responsible for applying only the safe subset of changes at
// runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is NOT called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// Config change produced an invalid config; skip the callback to
			// prevent the run from entering a broken state.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always
// fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
