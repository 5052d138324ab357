package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/config"
	"github.com/zheng/modgraph/internal/logging"
	"github.com/zheng/modgraph/internal/observability"
)

var (
	configPath string
	DbPath     string
	logLevel   string
	logFormat  string
	verbose    bool

	cfg     *config.Config
	tracer  *observability.TracerProvider
	version = "dev"
)

// NewRootCmd builds the modgraph command tree
func NewRootCmd(v string) *cobra.Command {
	version = v

	rootCmd := &cobra.Command{
		Use:   "modgraph",
		Short: "Go item graph: ownership tree, uses edges and change impact",
		Long: `modgraph loads a Go project, turns its packages, types, functions and
fields into a graph of Owns and Uses relationships, and answers questions
about it such as which items a change would touch.`,
		Version:           v,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default .modgraph.yaml if present)")
	pf.StringVarP(&DbPath, "db", "d", "", "snapshot database path (default from config)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	RegisterCommands(rootCmd)
	return rootCmd
}

// RegisterCommands adds all subcommands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(impactCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(cyclesCmd())
	rootCmd.AddCommand(orphansCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(implementsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(snapshotsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
}

// setup loads config, then logging, then tracing
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	if DbPath != "" {
		cfg.Storage.Path = DbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tracer, err = observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	cmd.SetContext(logging.WithLogger(ctx, logger))
	return nil
}

// Shutdown flushes pending spans; call it after Execute returns, also on error
func Shutdown(ctx context.Context) error {
	if tracer == nil {
		return nil
	}
	err := tracer.Shutdown(ctx)
	tracer = nil
	return err
}
