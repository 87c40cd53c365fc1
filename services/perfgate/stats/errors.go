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
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptySampleSet indicates a statistic was requested for no samples.
	ErrEmptySampleSet = errors.New("sample set is empty")

	// ErrNonFiniteSample indicates a sample is NaN or infinite.
	ErrNonFiniteSample = errors.New("sample is not a finite number")

	// ErrInvalidSignificance indicates alpha is outside (0, 1).
	ErrInvalidSignificance = errors.New("significance level must lie in (0, 1)")

	// ErrInvalidConfidence indicates a confidence level outside (0, 1).
	ErrInvalidConfidence = errors.New("confidence level must lie in (0, 1)")

	// ErrNumericOverflow indicates finite samples whose statistics exceed
	// the float64 range.
	ErrNumericOverflow = errors.New("statistic overflows float64")
)

// SampleError carries the context of a rejected sample set.
//
// Description:
//
//	SampleError identifies which metric and which side of a comparison
//	produced the error, and for non-finite samples the offending index
//	and value. Callers can recover it with errors.As to print a
//	diagnostic; errors.Is still matches the wrapped sentinel.
type SampleError struct {
	// Metric is the metric name. Empty for the primary metric.
	Metric string

	// Side is "baseline" or "current". Empty outside a comparison.
	Side string

	// Index is the position of the offending sample, or -1.
	Index int

	// Value is the offending sample value.
	Value float64

	// Err is the underlying sentinel error.
	Err error
}

// Error implements error.
func (e *SampleError) Error() string {
	msg := e.Err.Error()
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s: index %d has value %v", msg, e.Index, e.Value)
	}
	if e.Side != "" {
		msg = e.Side + " " + msg
	}
	if e.Metric != "" {
		msg = fmt.Sprintf("metric %q: %s", e.Metric, msg)
	}
	return msg
}

// Unwrap returns the underlying sentinel.
func (e *SampleError) Unwrap() error {
	return e.Err
}

// WithContext returns a copy of err annotated with metric and side.
//
// If err is a *SampleError its empty fields are filled in. Any other error
// is wrapped so that the side still appears in the message.
func WithContext(err error, metric, side string) error {
	if err == nil {
		return nil
	}
	var se *SampleError
	if errors.As(err, &se) {
		annotated := *se
		if annotated.Metric == "" {
			annotated.Metric = metric
		}
		if annotated.Side == "" {
			annotated.Side = side
		}
		return &annotated
	}
	return &SampleError{Metric: metric, Side: side, Index: -1, Err: err}
}

// CheckSamples enforces the non-empty, finite precondition. The returned
// error is a *SampleError without metric or side.
func CheckSamples(samples []float64) error {
	if len(samples) == 0 {
		return &SampleError{Index: -1, Err: ErrEmptySampleSet}
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &SampleError{Index: i, Value: v, Err: ErrNonFiniteSample}
		}
	}
	return nil
}

// finite reports whether every value is neither NaN nor infinite.
func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// overflow returns the *SampleError for a statistic that left the float64
// range.
func overflow(statistic string) error {
	return &SampleError{Index: -1, Err: errors.Wrap(ErrNumericOverflow, statistic)}
}

// CheckFinite returns a *SampleError wrapping ErrNumericOverflow when any
// value derived for statistic is NaN or infinite.
func CheckFinite(statistic string, values ...float64) error {
	if finite(values...) {
		return nil
	}
	return overflow(statistic)
}

// ValidateSignificance reports whether alpha lies strictly inside (0, 1).
func ValidateSignificance(alpha float64) error {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return errors.Wrapf(ErrInvalidSignificance, "got %v", alpha)
	}
	return nil
}
