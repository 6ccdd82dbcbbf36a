package mining

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/pmdash/internal/model"
	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

const tracerName = "github.com/logflow/pmdash/pkg/mining"

// Options controls a single analysis run.
type Options struct {
	// Expected is the compliance reference sequence.
	Expected Sequence

	// TopVariants caps the variant list.
	TopVariants int

	// SampleRows is the number of leading events echoed in the overview.
	SampleRows int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Expected:    DefaultExpected,
		TopVariants: DefaultTopVariants,
		SampleRows:  DefaultSampleRows,
	}
}

// Option overrides part of the engine defaults for one run.
type Option func(*Options)

// WithExpected sets the compliance reference sequence.
func WithExpected(seq Sequence) Option {
	return func(o *Options) {
		if len(seq) > 0 {
			o.Expected = seq
		}
	}
}

// WithTopVariants sets the variant limit.
func WithTopVariants(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.TopVariants = n
		}
	}
}

// Report is the combined output of every analysis pass over one log.
type Report struct {
	SnapshotID  string             `json:"snapshot_id,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Elapsed     time.Duration      `json:"elapsed"`
	Overview    Overview           `json:"overview"`
	Bottlenecks []BottleneckMetric `json:"bottlenecks"`
	Loops       []CaseLoop         `json:"loops"`
	Variants    []Variant          `json:"variants"`
	Compliance  ComplianceResult   `json:"compliance"`
}

// Engine runs the analysis passes concurrently over a log.
type Engine struct {
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates an engine with the given defaults.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	def := DefaultOptions()
	if len(opts.Expected) == 0 {
		opts.Expected = def.Expected
	}
	if opts.TopVariants <= 0 {
		opts.TopVariants = def.TopVariants
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = def.SampleRows
	}
	return &Engine{
		opts:   opts,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Options returns the engine defaults.
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze runs the overview and all four passes against log.
// The log must not be modified while Analyze runs.
func (e *Engine) Analyze(ctx context.Context, log *model.EventLog, overrides ...Option) (*Report, error) {
	opts := e.opts
	for _, o := range overrides {
		o(&opts)
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "mining.Analyze", trace.WithAttributes(
		attribute.Int("log.events", log.Len()),
		attribute.Int("variants.limit", opts.TopVariants),
	))
	defer span.End()

	start := time.Now()
	report := &Report{GeneratedAt: start.UTC()}

	g, gctx := errgroup.WithContext(ctx)
	pass := func(name string, fn func()) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, s := tracer.Start(gctx, "mining."+name)
			defer s.End()
			fn()
			return nil
		})
	}

	pass("Overview", func() { report.Overview = BuildOverview(log, opts.SampleRows) })
	pass("Bottlenecks", func() { report.Bottlenecks = RankBottlenecks(log) })
	pass("Loops", func() { report.Loops = LoopReport(DetectLoops(log)) })
	pass("Variants", func() { report.Variants = MineVariants(log, opts.TopVariants) })
	pass("Compliance", func() { report.Compliance = CheckCompliance(log, opts.Expected) })

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, pmerrors.Wrap(err, pmerrors.CodeContextCanceled, "analysis canceled")
	}

	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("log.cases", report.Overview.Cases),
		attribute.Int("compliance.violations", report.Compliance.NonCompliantCases),
	)

	e.logger.Debug().
		Int("events", report.Overview.Rows).
		Int("cases", report.Overview.Cases).
		Int("variants", len(report.Variants)).
		Int("loops", len(report.Loops)).
		Int("non_compliant", report.Compliance.NonCompliantCases).
		Dur("elapsed", report.Elapsed).
		Msg("analysis complete")

	return report, nil
}
