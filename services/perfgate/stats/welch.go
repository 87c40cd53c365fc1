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
	"encoding/json"
	"math"
)

// DefaultSignificanceLevel is the alpha used when callers do not choose one.
const DefaultSignificanceLevel = 0.05

// WelchResult contains the outcome of Welch's two-sample t-test.
type WelchResult struct {
	// TStatistic is (mean(baseline) - mean(current)) / StandardError.
	TStatistic float64 `json:"t_statistic"`

	// DegreesOfFreedom is the Welch-Satterthwaite approximation.
	DegreesOfFreedom float64 `json:"degrees_of_freedom"`

	// StandardError is √(se1² + se2²).
	StandardError float64 `json:"standard_error"`

	// Critical is the two-tailed critical value at 1 - Alpha.
	Critical float64 `json:"critical"`

	// PValue is the two-tailed p-value. Reporting only.
	PValue float64 `json:"p_value"`

	// Alpha is the significance level used.
	Alpha float64 `json:"alpha"`

	// Significant is true when |TStatistic| > Critical.
	Significant bool `json:"significant"`
}

// MarshalJSON encodes an infinite TStatistic as null.
func (w WelchResult) MarshalJSON() ([]byte, error) {
	type alias WelchResult
	var t *float64
	if !math.IsInf(w.TStatistic, 0) && !math.IsNaN(w.TStatistic) {
		t = &w.TStatistic
	}
	return json.Marshal(struct {
		alias
		TStatistic *float64 `json:"t_statistic"`
	}{alias(w), t})
}

// Welch performs Welch's t-test for unequal variances.
//
// Description:
//
//	Tests whether baseline and current have different means without
//	assuming equal variances or sizes. A singleton set contributes zero
//	variance. When the pooled standard error is zero:
//	  - if either set is a singleton, the result is t = 0, df = 0 and not
//	    significant, because no variance information exists;
//	  - otherwise both sets are constant, so any difference of means is
//	    exact and reported as significant with t = ±Inf.
//
// Inputs:
//   - baseline: Baseline samples. Must be non-empty and finite.
//   - current: Current samples. Must be non-empty and finite.
//   - alpha: Significance level in (0, 1).
//   - opts: WithCriticalValues selects the critical value source.
//
// Outputs:
//   - WelchResult: Test statistics and decision.
//   - error: ErrInvalidSignificance, or a *SampleError naming the side.
//     Finite samples whose summed variances leave the float64 range yield
//     ErrNumericOverflow.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Welch(baseline, current SampleSet, alpha float64, opts ...Option) (WelchResult, error) {
	if err := ValidateSignificance(alpha); err != nil {
		return WelchResult{}, err
	}
	o := applyOptions(opts)

	b, err := Describe(baseline, WithCriticalValues(o.critical))
	if err != nil {
		return WelchResult{}, WithContext(err, "", "baseline")
	}
	c, err := Describe(current, WithCriticalValues(o.critical))
	if err != nil {
		return WelchResult{}, WithContext(err, "", "current")
	}

	return checkedWelch(b, c, alpha, o.critical)
}

// WelchFromDescriptive runs the test on precomputed summaries.
//
// alpha is not validated; callers must check it with ValidateSignificance.
// A nil cv uses the table. The error is a *SampleError wrapping
// ErrNumericOverflow.
func WelchFromDescriptive(baseline, current Descriptive, alpha float64, cv CriticalValues) (WelchResult, error) {
	if cv == nil {
		cv = TableCriticalValues{}
	}
	return checkedWelch(baseline, current, alpha, cv)
}

// checkedWelch rejects results whose intermediate terms overflowed. An
// infinite t is legitimate only for constant sets with a zero standard error.
func checkedWelch(b, c Descriptive, alpha float64, cv CriticalValues) (WelchResult, error) {
	if err := CheckFinite("mean difference", b.Mean-c.Mean); err != nil {
		return WelchResult{}, err
	}
	res := welchFromDescriptive(b, c, alpha, cv)
	if err := CheckFinite("standard error", res.StandardError, res.DegreesOfFreedom, res.PValue); err != nil {
		return WelchResult{}, err
	}
	return res, nil
}

func welchFromDescriptive(b, c Descriptive, alpha float64, cv CriticalValues) WelchResult {
	v1 := squaredStandardError(b)
	v2 := squaredStandardError(c)
	pooledSE := math.Sqrt(v1 + v2)
	diff := b.Mean - c.Mean

	res := WelchResult{
		StandardError: pooledSE,
		Alpha:         alpha,
	}

	if pooledSE == 0 {
		if b.SampleCount < 2 || c.SampleCount < 2 {
			res.Critical = cv.CriticalValue(0, 1-alpha)
			res.PValue = 1
			return res
		}
		df := b.SampleCount + c.SampleCount - 2
		res.DegreesOfFreedom = float64(df)
		res.Critical = cv.CriticalValue(df, 1-alpha)
		if diff == 0 {
			res.PValue = 1
			return res
		}
		res.TStatistic = math.Copysign(math.Inf(1), diff)
		res.Significant = true
		return res
	}

	res.TStatistic = diff / pooledSE
	res.DegreesOfFreedom = satterthwaite(v1, b.SampleCount, v2, c.SampleCount)
	res.Critical = cv.CriticalValue(int(math.Round(res.DegreesOfFreedom)), 1-alpha)
	res.PValue = twoTailedPValue(res.TStatistic, res.DegreesOfFreedom)
	res.Significant = math.Abs(res.TStatistic) > res.Critical
	return res
}

// IsSignificant reports whether baseline and current differ at alpha.
func IsSignificant(baseline, current SampleSet, alpha float64, opts ...Option) (bool, error) {
	res, err := Welch(baseline, current, alpha, opts...)
	if err != nil {
		return false, err
	}
	return res.Significant, nil
}

// PooledStandardError returns √(se1² + se2²) for two summaries.
func PooledStandardError(baseline, current Descriptive) float64 {
	return math.Sqrt(squaredStandardError(baseline) + squaredStandardError(current))
}

// squaredStandardError is sd²/n, zero for singletons.
func squaredStandardError(d Descriptive) float64 {
	if d.SampleCount < 2 {
		return 0
	}
	return d.StandardDeviation * d.StandardDeviation / float64(d.SampleCount)
}

// satterthwaite computes the Welch-Satterthwaite df from squared standard
// errors. Singleton terms contribute nothing to the denominator.
func satterthwaite(v1 float64, n1 int, v2 float64, n2 int) float64 {
	var denom float64
	if n1 > 1 {
		denom += v1 * v1 / float64(n1-1)
	}
	if n2 > 1 {
		denom += v2 * v2 / float64(n2-1)
	}
	if denom == 0 {
		return 0
	}
	sum := v1 + v2
	return sum * sum / denom
}
