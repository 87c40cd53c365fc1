// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	mstats "github.com/montanaflynn/stats"
)

// DefaultConfidenceLevel is the confidence level of Descriptive intervals.
const DefaultConfidenceLevel = 0.95

// SampleSet is an ordered sequence of measurements taken under one fixed
// configuration.
type SampleSet []float64

// Interval is a closed confidence interval.
type Interval struct {
	// Lower is the lower bound.
	Lower float64 `json:"lower"`

	// Upper is the upper bound.
	Upper float64 `json:"upper"`

	// Level is the confidence level (e.g., 0.95).
	Level float64 `json:"level"`
}

// Contains returns true if the interval contains the value.
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// Width returns the interval width.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Descriptive summarises one sample set.
type Descriptive struct {
	Mean                   float64       `json:"mean"`
	StandardDeviation      float64       `json:"standard_deviation"`
	Min                    float64       `json:"min"`
	Max                    float64       `json:"max"`
	Median                 float64       `json:"median"`
	CoefficientOfVariation float64       `json:"coefficient_of_variation"`
	SampleCount            int           `json:"sample_count"`
	ConfidenceInterval     Interval      `json:"confidence_interval"`
	Quality                QualityRating `json:"quality"`
}

// StandardError returns stddev/√n, or 0 for an empty summary.
func (d Descriptive) StandardError() float64 {
	if d.SampleCount == 0 {
		return 0
	}
	return d.StandardDeviation / math.Sqrt(float64(d.SampleCount))
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

type options struct {
	confidenceLevel float64
	critical        CriticalValues
}

func defaultOptions() options {
	return options{
		confidenceLevel: DefaultConfidenceLevel,
		critical:        TableCriticalValues{},
	}
}

// Option configures Describe and Welch.
type Option func(*options)

// WithConfidenceLevel sets the confidence level of the interval.
func WithConfidenceLevel(level float64) Option {
	return func(o *options) {
		o.confidenceLevel = level
	}
}

// WithCriticalValues sets the critical value source. Nil is ignored.
func WithCriticalValues(cv CriticalValues) Option {
	return func(o *options) {
		if cv != nil {
			o.critical = cv
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// -----------------------------------------------------------------------------
// Describe
// -----------------------------------------------------------------------------

// Describe computes descriptive statistics for a sample set.
//
// Description:
//
//	Computes the arithmetic mean, Bessel-corrected standard deviation,
//	extremes, interpolated median, coefficient of variation and a
//	mean ± t·stddev/√n confidence interval with df = n-1.
//
// Inputs:
//   - samples: The measurements. Must be non-empty and finite.
//   - opts: WithConfidenceLevel (default 0.95), WithCriticalValues.
//
// Outputs:
//   - Descriptive: The statistics.
//   - error: ErrEmptySampleSet, ErrNonFiniteSample, ErrNumericOverflow (as
//     *SampleError) or ErrInvalidConfidence. Finite samples near the
//     float64 limits can overflow the mean, the variance or the interval;
//     that is reported instead of returning infinite statistics.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Describe(samples SampleSet, opts ...Option) (Descriptive, error) {
	o := applyOptions(opts)
	if math.IsNaN(o.confidenceLevel) || o.confidenceLevel <= 0 || o.confidenceLevel >= 1 {
		return Descriptive{}, errors.Wrapf(ErrInvalidConfidence, "got %v", o.confidenceLevel)
	}
	if err := CheckSamples(samples); err != nil {
		return Descriptive{}, err
	}

	data := mstats.Float64Data(samples)
	n := len(samples)

	mean, err := mstats.Mean(data)
	if err != nil {
		return Descriptive{}, errors.Wrap(err, "mean")
	}
	minV, err := mstats.Min(data)
	if err != nil {
		return Descriptive{}, errors.Wrap(err, "min")
	}
	maxV, err := mstats.Max(data)
	if err != nil {
		return Descriptive{}, errors.Wrap(err, "max")
	}

	if !finite(mean) {
		return Descriptive{}, overflow("mean")
	}

	var stdDev float64
	if n > 1 {
		stdDev, err = mstats.StandardDeviationSample(data)
		if err != nil {
			return Descriptive{}, errors.Wrap(err, "standard deviation")
		}
	}
	if !finite(stdDev) {
		return Descriptive{}, overflow("standard deviation")
	}

	sorted := slices.Clone([]float64(samples))
	slices.Sort(sorted)
	median := Percentile(sorted, 50)
	if !finite(median) {
		return Descriptive{}, overflow("median")
	}

	// a subnormal mean can overflow the quotient; it is treated like zero
	var cv float64
	if q := stdDev / mean; mean != 0 && finite(q) {
		cv = q
	}

	margin := o.critical.CriticalValue(n-1, o.confidenceLevel) * stdDev / math.Sqrt(float64(n))
	if !finite(margin, mean-margin, mean+margin) {
		return Descriptive{}, overflow("confidence interval")
	}

	return Descriptive{
		Mean:                   mean,
		StandardDeviation:      stdDev,
		Min:                    minV,
		Max:                    maxV,
		Median:                 median,
		CoefficientOfVariation: cv,
		SampleCount:            n,
		ConfidenceInterval: Interval{
			Lower: mean - margin,
			Upper: mean + margin,
			Level: o.confidenceLevel,
		},
		Quality: Classify(cv),
	}, nil
}

// Percentile returns the p-th percentile of sorted data.
//
// The fractional index p/100·(n-1) selects an element directly when it is
// integral and otherwise interpolates linearly between its neighbours.
// p is clamped to [0, 100]. Empty input returns NaN; callers that need an
// error should go through Describe.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	p = math.Min(math.Max(p, 0), 100)

	idx := p / 100 * float64(n-1)
	lower := math.Floor(idx)
	if idx == lower {
		return sorted[int(idx)]
	}
	lo := int(lower)
	frac := idx - lower
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
