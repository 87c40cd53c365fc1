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

import "math"

// MetricSamples holds the raw values of one auxiliary metric on each side.
type MetricSamples struct {
	Baseline []float64 `json:"baseline" yaml:"baseline"`
	Current  []float64 `json:"current" yaml:"current"`
}

// MetricComparison is the delta of one metric between baseline and current.
type MetricComparison struct {
	// Baseline is the baseline value.
	Baseline float64 `json:"baseline"`

	// Current is the current value.
	Current float64 `json:"current"`

	// AbsoluteChange is Current - Baseline.
	AbsoluteChange float64 `json:"absolute_change"`

	// PercentChange is AbsoluteChange / Baseline * 100. Zero when
	// PercentDefined is false.
	PercentChange float64 `json:"percent_change"`

	// PercentDefined is false when Baseline is zero or so close to zero that
	// the quotient is not finite.
	PercentDefined bool `json:"percent_defined"`
}

// NewMetricComparison builds the delta between two values.
func NewMetricComparison(baseline, current float64) MetricComparison {
	mc := MetricComparison{
		Baseline:       baseline,
		Current:        current,
		AbsoluteChange: current - baseline,
	}
	mc.PercentChange, mc.PercentDefined = percentChange(baseline, current)
	return mc
}

// percentChange returns the change in percent. It reports false, with a
// zero value, when the baseline is zero or the quotient is not finite.
func percentChange(baseline, current float64) (float64, bool) {
	if baseline == 0 {
		return 0, false
	}
	pct := ((current - baseline) / baseline) * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, false
	}
	return pct, true
}
