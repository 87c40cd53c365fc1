// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate decides whether a measurement run passes against its stored
// baseline.
package gate

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/compare"
	"github.com/AleutianAI/perfgate/services/perfgate/ingest"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
	"github.com/AleutianAI/perfgate/services/perfgate/telemetry"
)

var (
	// ErrUnitMismatch indicates the run and its baseline use different units.
	ErrUnitMismatch = errors.New("run unit does not match baseline unit")

	// ErrSeedFailed indicates a first run could not be stored as the
	// baseline for its key.
	ErrSeedFailed = errors.New("failed to create initial baseline")
)

const tracerName = "perfgate/gate"

// -----------------------------------------------------------------------------
// Gate Configuration
// -----------------------------------------------------------------------------

// Config configures the gate.
type Config struct {
	// SignificanceLevel is the alpha of the Welch test.
	// Default: 0.05
	SignificanceLevel float64

	// Critical is the critical value source.
	// Default: the bucketed table
	Critical stats.CriticalValues

	// RequireBaseline fails the check if no baseline exists.
	// Default: true
	RequireBaseline bool

	// UpdateBaselineOnPass replaces the baseline with the run when the
	// verdict is not a regression.
	// Default: false
	UpdateBaselineOnPass bool

	// Concurrency bounds CheckAll. Default: GOMAXPROCS.
	Concurrency int

	// Logger for output.
	Logger *slog.Logger

	// Sink receives one record per completed comparison.
	Sink telemetry.Sink
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SignificanceLevel: stats.DefaultSignificanceLevel,
		Critical:          stats.TableCriticalValues{},
		RequireBaseline:   true,
		Concurrency:       runtime.GOMAXPROCS(0),
		Logger:            slog.Default(),
		Sink:              telemetry.NewNoOpSink(),
	}
}

// Option configures the gate.
type Option func(*Config)

// WithSignificanceLevel sets alpha. It is validated by Check.
func WithSignificanceLevel(alpha float64) Option {
	return func(c *Config) {
		c.SignificanceLevel = alpha
	}
}

// WithCriticalValues sets the critical value source. Nil is ignored.
func WithCriticalValues(cv stats.CriticalValues) Option {
	return func(c *Config) {
		if cv != nil {
			c.Critical = cv
		}
	}
}

// WithRequireBaseline requires a baseline to exist.
func WithRequireBaseline(required bool) Option {
	return func(c *Config) {
		c.RequireBaseline = required
	}
}

// WithUpdateBaselineOnPass enables baseline replacement on pass.
func WithUpdateBaselineOnPass(enabled bool) Option {
	return func(c *Config) {
		c.UpdateBaselineOnPass = enabled
	}
}

// WithConcurrency bounds the number of concurrent checks in CheckAll.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithSink sets the telemetry sink.
func WithSink(sink telemetry.Sink) Option {
	return func(c *Config) {
		if sink != nil {
			c.Sink = sink
		}
	}
}

// -----------------------------------------------------------------------------
// Gate
// -----------------------------------------------------------------------------

// Gate checks runs for performance regressions against stored baselines.
//
// Thread Safety: Safe for concurrent use if the store and sink are.
type Gate struct {
	store  baseline.Store
	config *Config
	logger *slog.Logger
}

// NewGate creates a new regression gate.
//
// Inputs:
//   - store: Baseline store. Must not be nil.
//   - opts: Configuration options.
//
// Outputs:
//   - *Gate: The new gate. Never nil.
func NewGate(store baseline.Store, opts ...Option) *Gate {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &Gate{
		store:  store,
		config: config,
		logger: config.Logger,
	}
}

// Config returns a copy of the gate configuration.
func (g *Gate) Config() Config {
	return *g.config
}

// Decision is the outcome of one gate check.
type Decision struct {
	// ID identifies the check.
	ID uuid.UUID `json:"id"`

	// Key is the baseline key.
	Key string `json:"key"`

	// Unit of the primary metric.
	Unit string `json:"unit,omitempty"`

	// Verdict is the comparison verdict. NoChange when the run seeded
	// the baseline.
	Verdict compare.Verdict `json:"verdict"`

	// Result is the comparison. Nil when the run seeded the baseline.
	Result *compare.Result `json:"result,omitempty"`

	// BaselineCreated is true if the run became the first baseline.
	BaselineCreated bool `json:"baseline_created"`

	// BaselineUpdated is true if the run replaced the baseline.
	BaselineUpdated bool `json:"baseline_updated"`

	// Timestamp is when the check was performed.
	Timestamp time.Time `json:"timestamp"`

	// Duration is the check duration.
	Duration time.Duration `json:"duration_ns"`
}

// ExitCode maps the decision onto the process exit convention.
// A nil decision is ExitError.
func (d *Decision) ExitCode() int {
	if d == nil {
		return compare.ExitError
	}
	return d.Verdict.ExitCode()
}

// Pass is true unless the verdict is a regression.
func (d *Decision) Pass() bool {
	return d != nil && d.Verdict != compare.Regression
}

// Check evaluates a run against its baseline.
//
// Description:
//
//	Check loads the baseline stored under run.Key, compares the primary
//	samples with Welch's t-test and reduces each auxiliary metric present
//	on both sides to a delta of means. When no baseline exists the check
//	fails with baseline.ErrBaselineNotFound if RequireBaseline is set;
//	otherwise the run is stored as the first baseline and passes. If that
//	store fails the check fails with ErrSeedFailed, since a later run
//	would again find no baseline.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - run: The current run. Must be valid.
//
// Outputs:
//   - *Decision: The decision. Nil on error.
//   - error: ingest.ErrInvalidRun, baseline.ErrBaselineNotFound,
//     ErrUnitMismatch, ErrSeedFailed, stats errors, or a store error.
//
// Thread Safety: Safe for concurrent use.
func (g *Gate) Check(ctx context.Context, run *ingest.Run) (*Decision, error) {
	if ctx == nil {
		return nil, errors.New("context must not be nil")
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gate.Gate.Check",
		trace.WithAttributes(
			attribute.String("key", run.Key),
			attribute.Int("samples", len(run.Samples)),
		),
	)
	defer span.End()

	start := time.Now()
	decision := &Decision{
		ID:        uuid.New(),
		Key:       run.Key,
		Unit:      run.Unit,
		Timestamp: start,
	}

	rec, err := g.store.Load(ctx, run.Key)
	if err != nil {
		if !errors.Is(err, baseline.ErrBaselineNotFound) || g.config.RequireBaseline {
			return nil, g.fail(span, err, "load baseline")
		}
		return g.seed(ctx, span, run, decision)
	}

	if rec.Unit != "" && run.Unit != "" && rec.Unit != run.Unit {
		err := errors.Wrapf(ErrUnitMismatch, "key %q: baseline %q, run %q", run.Key, rec.Unit, run.Unit)
		return nil, g.fail(span, err, "unit mismatch")
	}
	if decision.Unit == "" {
		decision.Unit = rec.Unit
	}

	result, err := compare.Compare(rec.Samples, run.Samples,
		compare.WithSignificanceLevel(g.config.SignificanceLevel),
		compare.WithCriticalValues(g.config.Critical),
		compare.WithAuxiliaryMetrics(ingest.PairAuxiliary(rec.Auxiliary, run.Auxiliary)),
	)
	if err != nil {
		return nil, g.fail(span, err, "compare")
	}
	decision.Result = result
	decision.Verdict = result.Verdict()

	if decision.Pass() && g.config.UpdateBaselineOnPass {
		if err := g.store.Save(ctx, run.Key, run.ToRecord()); err != nil {
			g.logger.Warn("failed to update baseline",
				slog.String("key", run.Key),
				slog.String("error", err.Error()),
			)
		} else {
			decision.BaselineUpdated = true
		}
	}

	decision.Duration = time.Since(start)
	g.record(ctx, decision)

	span.SetAttributes(
		attribute.String("verdict", decision.Verdict.String()),
		attribute.Float64("mean_difference_percent", result.MeanDifferencePercent),
		attribute.Float64("p_value", result.Welch.PValue),
		attribute.Bool("baseline_updated", decision.BaselineUpdated),
	)
	if !decision.Pass() {
		span.SetStatus(codes.Error, "regression detected")
	}

	g.logger.Info("regression gate check completed",
		slog.String("key", run.Key),
		slog.String("verdict", decision.Verdict.String()),
		slog.Float64("mean_difference_percent", result.MeanDifferencePercent),
		slog.Float64("t", result.Welch.TStatistic),
		slog.Float64("df", result.Welch.DegreesOfFreedom),
		slog.String("baseline_quality", result.Baseline.Quality.String()),
		slog.String("current_quality", result.Current.Quality.String()),
		slog.Bool("baseline_updated", decision.BaselineUpdated),
	)

	return decision, nil
}

// seed stores the run as the first baseline for its key.
func (g *Gate) seed(ctx context.Context, span trace.Span, run *ingest.Run, decision *Decision) (*Decision, error) {
	if err := g.store.Save(ctx, run.Key, run.ToRecord()); err != nil {
		err = errors.Mark(errors.Wrapf(err, "seed baseline %q", run.Key), ErrSeedFailed)
		return nil, g.fail(span, err, "seed baseline")
	}
	decision.BaselineCreated = true
	decision.Verdict = compare.NoChange
	decision.Duration = time.Since(decision.Timestamp)

	span.SetAttributes(attribute.Bool("baseline_created", decision.BaselineCreated))
	g.logger.Info("no baseline found, first run",
		slog.String("key", run.Key),
	)
	return decision, nil
}

func (g *Gate) fail(span trace.Span, err error, stage string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	g.logger.Error("regression gate check failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return err
}

// record sends the decision to the sink. Sink failures are logged only.
func (g *Gate) record(ctx context.Context, d *Decision) {
	data := &telemetry.ComparisonData{
		Key:                   d.Key,
		Verdict:               d.Verdict.String(),
		MeanDifferencePercent: d.Result.MeanDifferencePercent,
		PValue:                d.Result.Welch.PValue,
		BaselineCV:            d.Result.Baseline.CoefficientOfVariation,
		CurrentCV:             d.Result.Current.CoefficientOfVariation,
		Duration:              d.Duration,
	}
	if err := g.config.Sink.RecordComparison(ctx, data); err != nil {
		g.logger.Warn("failed to record telemetry",
			slog.String("key", d.Key),
			slog.String("error", err.Error()),
		)
	}
}

// -----------------------------------------------------------------------------
// CheckAll
// -----------------------------------------------------------------------------

// Outcome pairs a run with its decision or error.
type Outcome struct {
	Key      string    `json:"key"`
	Decision *Decision `json:"decision,omitempty"`
	Err      error     `json:"-"`
}

// ExitCode is the decision's exit code, or ExitError if the check failed.
func (o Outcome) ExitCode() int {
	if o.Err != nil {
		return compare.ExitError
	}
	return o.Decision.ExitCode()
}

// CheckAll checks runs concurrently.
//
// Description:
//
//	Each run is checked independently; a failing check is reported in its
//	Outcome and does not stop the others. Outcomes keep the order of runs.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - runs: Runs to check.
//
// Outputs:
//   - []Outcome: One per run.
//   - error: Non-nil only if ctx was cancelled.
//
// Thread Safety: Safe for concurrent use.
func (g *Gate) CheckAll(ctx context.Context, runs []*ingest.Run) ([]Outcome, error) {
	outcomes := make([]Outcome, len(runs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.Concurrency)
	for i, run := range runs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			var key string
			if run != nil {
				key = run.Key
			}
			d, err := g.Check(egCtx, run)
			outcomes[i] = Outcome{Key: key, Decision: d, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// ExitCode aggregates outcomes: the highest exit code wins. No outcomes
// is ExitError.
func ExitCode(outcomes []Outcome) int {
	if len(outcomes) == 0 {
		return compare.ExitError
	}
	code := compare.ExitPass
	for _, o := range outcomes {
		code = max(code, o.ExitCode())
	}
	return code
}
