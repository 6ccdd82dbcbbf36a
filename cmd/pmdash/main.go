// pmdash - Process mining dashboard
// Analyzes event logs for bottlenecks, rework loops, process variants and
// compliance against an expected activity sequence.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/logflow/pmdash/pkg/config"
	"github.com/logflow/pmdash/pkg/ingest"
	"github.com/logflow/pmdash/pkg/logging"
	"github.com/logflow/pmdash/pkg/mining"
	"github.com/logflow/pmdash/pkg/store"
	"github.com/logflow/pmdash/pkg/telemetry"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
)

// Set up by the root command before any subcommand runs.
var (
	cfgManager        = config.NewManager()
	logger            zerolog.Logger
	shutdownTelemetry func(context.Context) error
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pmdash",
	Short: "pmdash - Process mining dashboard",
	Long: `pmdash analyzes process event logs (case id, activity, timestamp).

It reports per-activity waiting times, cases that repeat activities,
the most common process variants and cases that deviate from an
expected sequence, from the terminal or over an HTTP API.`,
	Version:           fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pmdash %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: /etc/pmdash, ~/.pmdash, ./.pmdash.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")

	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration, installs the process logger and starts
// tracing when enabled.
func setup(cmd *cobra.Command, args []string) error {
	if err := cfgManager.Load(configFile); err != nil {
		return err
	}
	cfg := cfgManager.Get()

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger = logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if paths := cfgManager.GetPaths(); len(paths) > 0 {
		logger.Debug().Strs("paths", paths).Msg("configuration loaded")
	}

	shutdown, err := telemetry.NewExporter(telemetryConfig(cfg)).Init(cmd.Context())
	if err != nil {
		// Tracing is optional; run without it
		logger.Warn().Err(err).Msg("telemetry disabled")
		shutdown = func(context.Context) error { return nil }
	}
	shutdownTelemetry = shutdown
	return nil
}

func teardown() error {
	if shutdownTelemetry == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return shutdownTelemetry(ctx)
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	tc := telemetry.DefaultConfig(cfg.Telemetry.ServiceName)
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.ServiceVersion = version
	tc.SamplingRatio = cfg.Telemetry.SamplingRatio
	return tc
}

func engineOptions(cfg *config.Config) mining.Options {
	return mining.Options{
		Expected:    mining.Sequence(cfg.Analysis.ExpectedSequence),
		TopVariants: cfg.Analysis.TopVariants,
		SampleRows:  cfg.Analysis.SampleRows,
	}
}

func loaderOptions(cfg *config.Config) ingest.Options {
	return ingest.Options{
		Engine: cfg.Ingest.Engine,
		S3: ingest.S3Config{
			Region:       cfg.Ingest.S3.Region,
			Endpoint:     cfg.Ingest.S3.Endpoint,
			UsePathStyle: cfg.Ingest.S3.UsePathStyle,
		},
		Logger: logger,
	}
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Backend: cfg.Store.Backend,
		Redis: store.RedisConfig{
			Address:  cfg.Store.Redis.Address,
			Password: cfg.Store.Redis.Password,
			Database: cfg.Store.Redis.Database,
			Prefix:   cfg.Store.Redis.Prefix,
			Timeout:  cfg.Store.Redis.Timeout,
		},
	}
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
