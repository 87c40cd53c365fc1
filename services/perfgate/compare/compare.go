// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"math"

	mstats "github.com/montanaflynn/stats"

	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

type options struct {
	alpha     float64
	auxiliary map[string]MetricSamples
	critical  stats.CriticalValues
}

// Option configures Compare.
type Option func(*options)

// WithSignificanceLevel sets alpha. Default: 0.05.
func WithSignificanceLevel(alpha float64) Option {
	return func(o *options) {
		o.alpha = alpha
	}
}

// WithAuxiliaryMetrics adds named auxiliary metrics to the comparison.
func WithAuxiliaryMetrics(metrics map[string]MetricSamples) Option {
	return func(o *options) {
		o.auxiliary = metrics
	}
}

// WithCriticalValues sets the critical value source. Default: the table.
func WithCriticalValues(cv stats.CriticalValues) Option {
	return func(o *options) {
		if cv != nil {
			o.critical = cv
		}
	}
}

// -----------------------------------------------------------------------------
// Result
// -----------------------------------------------------------------------------

// Result is the comparison of a current sample set against a baseline.
type Result struct {
	// Baseline summarises the baseline samples.
	Baseline stats.Descriptive `json:"baseline"`

	// Current summarises the current samples.
	Current stats.Descriptive `json:"current"`

	// MeanDifference is Current.Mean - Baseline.Mean.
	MeanDifference float64 `json:"mean_difference"`

	// MeanDifferencePercent is MeanDifference / Baseline.Mean * 100. Zero
	// when MeanDifferencePercentDefined is false.
	MeanDifferencePercent float64 `json:"mean_difference_percent"`

	// MeanDifferencePercentDefined is false when the baseline mean is zero
	// or too close to zero for a finite percentage.
	MeanDifferencePercentDefined bool `json:"mean_difference_percent_defined"`

	// DifferenceInterval is the confidence interval of MeanDifference at
	// 1 - SignificanceLevel.
	DifferenceInterval stats.Interval `json:"difference_interval"`

	// Welch holds the hypothesis test details.
	Welch stats.WelchResult `json:"welch"`

	// IsSignificant is the outcome of the Welch test.
	IsSignificant bool `json:"is_significant"`

	// SignificanceLevel is the alpha used.
	SignificanceLevel float64 `json:"significance_level"`

	// IsRegression is IsSignificant && MeanDifference > 0.
	IsRegression bool `json:"is_regression"`

	// IsImprovement is IsSignificant && MeanDifference < 0.
	IsImprovement bool `json:"is_improvement"`

	// Auxiliary holds one entry per auxiliary metric observed on both sides.
	Auxiliary map[string]MetricComparison `json:"auxiliary,omitempty"`
}

// Primary returns the primary metric as a MetricComparison of the means.
func (r *Result) Primary() MetricComparison {
	return NewMetricComparison(r.Baseline.Mean, r.Current.Mean)
}

// Verdict returns VerdictOf(r).
func (r *Result) Verdict() Verdict {
	return VerdictOf(r)
}

// -----------------------------------------------------------------------------
// Compare
// -----------------------------------------------------------------------------

// Compare compares current against baseline.
//
// Description:
//
//	Summarises both sides, runs Welch's t-test at the chosen alpha, and
//	computes the confidence interval of the difference with margin
//	t(min(n1,n2)-1, 1-alpha) · pooledSE. Each auxiliary metric with values
//	on both sides is reduced to the delta of its means; a metric missing
//	from either side is omitted.
//
// Inputs:
//   - baseline: Baseline samples. Must be non-empty and finite.
//   - current: Current samples. Must be non-empty and finite.
//   - opts: WithSignificanceLevel, WithAuxiliaryMetrics, WithCriticalValues.
//
// Outputs:
//   - *Result: The comparison. Nil on error.
//   - error: stats.ErrInvalidSignificance, or a *stats.SampleError naming
//     the metric and side. Statistics that leave the float64 range yield
//     stats.ErrNumericOverflow.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Compare(baseline, current stats.SampleSet, opts ...Option) (*Result, error) {
	o := options{
		alpha:    stats.DefaultSignificanceLevel,
		critical: stats.TableCriticalValues{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := stats.ValidateSignificance(o.alpha); err != nil {
		return nil, err
	}

	b, err := stats.Describe(baseline, stats.WithCriticalValues(o.critical))
	if err != nil {
		return nil, stats.WithContext(err, "", "baseline")
	}
	c, err := stats.Describe(current, stats.WithCriticalValues(o.critical))
	if err != nil {
		return nil, stats.WithContext(err, "", "current")
	}

	welch, err := stats.WelchFromDescriptive(b, c, o.alpha, o.critical)
	if err != nil {
		return nil, err
	}
	diff := c.Mean - b.Mean

	df := min(b.SampleCount, c.SampleCount) - 1
	margin := o.critical.CriticalValue(df, 1-o.alpha) * welch.StandardError
	if err := stats.CheckFinite("difference interval", diff-margin, diff+margin); err != nil {
		return nil, err
	}

	pct, pctDefined := percentChange(b.Mean, c.Mean)
	res := &Result{
		Baseline:                     b,
		Current:                      c,
		MeanDifference:               diff,
		MeanDifferencePercent:        pct,
		MeanDifferencePercentDefined: pctDefined,
		DifferenceInterval: stats.Interval{
			Lower: diff - margin,
			Upper: diff + margin,
			Level: 1 - o.alpha,
		},
		Welch:             welch,
		IsSignificant:     welch.Significant,
		SignificanceLevel: o.alpha,
		IsRegression:      welch.Significant && diff > 0,
		IsImprovement:     welch.Significant && diff < 0,
	}

	aux, err := compareAuxiliary(o.auxiliary)
	if err != nil {
		return nil, err
	}
	res.Auxiliary = aux

	return res, nil
}

// compareAuxiliary reduces each auxiliary metric to the delta of its means.
func compareAuxiliary(metrics map[string]MetricSamples) (map[string]MetricComparison, error) {
	if len(metrics) == 0 {
		return nil, nil
	}

	out := make(map[string]MetricComparison, len(metrics))
	for name, m := range metrics {
		if len(m.Baseline) == 0 || len(m.Current) == 0 {
			continue
		}
		bm, err := auxiliaryMean(m.Baseline)
		if err != nil {
			return nil, stats.WithContext(err, name, "baseline")
		}
		cm, err := auxiliaryMean(m.Current)
		if err != nil {
			return nil, stats.WithContext(err, name, "current")
		}
		if err := stats.CheckFinite("mean difference", cm-bm); err != nil {
			return nil, stats.WithContext(err, name, "")
		}
		out[name] = NewMetricComparison(bm, cm)
	}
	return out, nil
}

func auxiliaryMean(values []float64) (float64, error) {
	if err := stats.CheckSamples(values); err != nil {
		return math.NaN(), err
	}
	m, err := mstats.Mean(values)
	if err != nil {
		return math.NaN(), err
	}
	return m, stats.CheckFinite("mean", m)
}
