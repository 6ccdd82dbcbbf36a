package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logflow/pmdash/pkg/ingest"
	"github.com/logflow/pmdash/pkg/mining"
	"github.com/logflow/pmdash/pkg/tui"
	"github.com/logflow/pmdash/pkg/validate"
	"github.com/logflow/pmdash/pkg/watch"
)

var (
	analyzeInput    string
	analyzeExpected string
	analyzeTop      int
	analyzeJSON     bool
	analyzeWatch    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an event log and print the report",
	Long: `Read an event log, validate it and print the full analysis.

The log needs case_id, activity and timestamp columns. Supported sources
are CSV, TSV, XLSX, Parquet, JSON and NDJSON files, local or s3://.

Examples:
  pmdash analyze -i events.csv
  pmdash analyze -i events.xlsx --expected "Start,Review,Approve,End"
  pmdash analyze -i s3://bucket/logs/events.parquet --json
  pmdash analyze -i events.csv --watch`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "Event log path or s3:// URI (required)")
	analyzeCmd.Flags().StringVar(&analyzeExpected, "expected", "", "Expected activity sequence, comma separated")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "Number of variants to report")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().BoolVarP(&analyzeWatch, "watch", "w", false, "Re-run the analysis whenever the input changes")
	analyzeCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	var overrides []mining.Option
	if analyzeExpected != "" {
		seq := mining.ParseSequence(analyzeExpected)
		if len(seq) == 0 {
			return fmt.Errorf("--expected must list at least one activity")
		}
		overrides = append(overrides, mining.WithExpected(seq))
	}
	if analyzeTop < 0 {
		return fmt.Errorf("--top must be positive")
	}
	overrides = append(overrides, mining.WithTopVariants(analyzeTop))

	opts := loaderOptions(cfg)
	if !analyzeJSON && isTerminal(os.Stderr) {
		opts.Progress = tui.ProgressReader(os.Stderr)
	}
	loader := ingest.NewLoader(opts)
	engine := mining.NewEngine(engineOptions(cfg), logger)
	out := cmd.OutOrStdout()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run := func(ctx context.Context, path string) error {
		return analyzeOnce(ctx, out, loader, engine, path, overrides)
	}

	if err := run(ctx, analyzeInput); err != nil {
		if !analyzeWatch {
			return err
		}
		// Keep watching; a later write may fix the file
		logger.Error().Err(err).Str("path", analyzeInput).Msg("analysis failed")
	}
	if !analyzeWatch {
		return nil
	}

	if ingest.IsS3URI(analyzeInput) {
		return fmt.Errorf("--watch needs a local file")
	}
	w, err := watch.NewWatcher(logger)
	if err != nil {
		return err
	}
	defer w.Close()

	w.OnReload = run
	if err := w.Watch(analyzeInput); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", analyzeInput)

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// analyzeOnce loads, validates and analyzes path, then prints the report.
func analyzeOnce(ctx context.Context, out io.Writer, loader *ingest.Loader, engine *mining.Engine, path string, overrides []mining.Option) error {
	rs, err := loader.Load(ctx, path)
	if err != nil {
		return err
	}

	log, err := validate.Validate(rs)
	if err != nil {
		return err
	}

	report, err := engine.Analyze(ctx, log, overrides...)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	tui.RenderReport(out, report)
	return nil
}
