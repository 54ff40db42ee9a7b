// Package cli defines the molforge command tree: a root command that loads
// configuration and wires logging, and train/generate/evaluate subcommands
// that drive the engine.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolForge-Engine/internal/config"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/prometheus"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	Verbose    bool
}

// CLIContext carries the initialized dependencies through the command tree.
type CLIContext struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *prometheus.EngineMetrics
}

// NewRootCommand creates the root command with all global flags and
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "molforge",
		Short:   "MolForge — autoregressive equivariant molecule generation engine",
		Long:    "MolForge trains and runs autoregressive generative models that grow\n3D molecules atom by atom: pick a focus atom, pick the next element,\nplace it with a rotation-equivariant position distribution.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: env vars and built-in defaults)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&opts.LogFormat, "log-format", "", "log format override (json, text)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "shorthand for --log-level=debug")

	cmd.AddCommand(
		newTrainCmd(),
		newGenerateCmd(),
		newEvaluateCmd(),
	)
	return cmd
}

// persistentPreRun loads configuration, builds the logger, and stores the
// CLIContext on the command context for subcommands.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		Output:           cfg.Log.Output,
		EnableCaller:     cfg.Log.EnableCaller,
		EnableStacktrace: cfg.Log.EnableStacktrace,
	})
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{Config: cfg, Logger: logger}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: --config file > environment
// variables > built-in defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadFromEnv()
}

// GetCLIContext extracts the CLIContext stored by persistentPreRun.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cliCtx, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, fmt.Errorf("cli context not initialized")
	}
	return cliCtx, nil
}

// startMetrics brings up the Prometheus exposition endpoint when enabled and
// attaches the engine metrics to the CLI context. The listener runs until
// the process exits.
func startMetrics(cliCtx *CLIContext) error {
	if !cliCtx.Config.Metrics.Enabled {
		collector := prometheus.NewNoopCollector()
		cliCtx.Metrics = prometheus.NewEngineMetrics(collector)
		return nil
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "molforge",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("metrics collector failed: %w", err)
	}
	cliCtx.Metrics = prometheus.NewEngineMetrics(collector)

	mux := http.NewServeMux()
	mux.Handle(cliCtx.Config.Metrics.Path, collector.Handler())
	addr := cliCtx.Config.Metrics.Addr
	go func() {
		if serveErr := http.ListenAndServe(addr, mux); serveErr != nil {
			cliCtx.Logger.Warn("metrics endpoint stopped", logging.Err(serveErr))
		}
	}()
	cliCtx.Logger.Info("metrics endpoint started",
		logging.String("addr", addr),
		logging.String("path", cliCtx.Config.Metrics.Path))
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the root command. It is the entry point used by main.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
