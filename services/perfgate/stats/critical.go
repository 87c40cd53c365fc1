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
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Critical Values
// -----------------------------------------------------------------------------

// CriticalValues supplies two-tailed Student's-t critical values.
//
// Implementations must be monotone: for a fixed level the value never
// increases as df grows, and for a fixed df it never decreases as the
// level grows.
type CriticalValues interface {
	// CriticalValue returns t such that P(|T| > t) = 1 - level for df
	// degrees of freedom.
	CriticalValue(df int, level float64) float64
}

// CriticalMode names a CriticalValues implementation.
type CriticalMode string

const (
	// CriticalTable selects the bucketed lookup table.
	CriticalTable CriticalMode = "table"

	// CriticalExact selects the inverse Student's-t CDF.
	CriticalExact CriticalMode = "exact"
)

// ParseCriticalMode parses "table" or "exact". The empty string is "table".
func ParseCriticalMode(s string) (CriticalMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(CriticalTable):
		return CriticalTable, nil
	case string(CriticalExact):
		return CriticalExact, nil
	default:
		return "", errors.Newf("unknown critical value mode %q", s)
	}
}

// Source returns the implementation for the mode.
func (m CriticalMode) Source() CriticalValues {
	if m == CriticalExact {
		return ExactCriticalValues{}
	}
	return TableCriticalValues{}
}

// tBucket is one row of the lookup table. minDF is inclusive.
type tBucket struct {
	minDF int
	t95   float64
	t99   float64
}

// tBuckets are ordered from the largest df bucket down. Each value is the
// two-tailed critical value at the bucket's lower bound; the last row
// covers df < 5 with the df = 4 value.
var tBuckets = []tBucket{
	{minDF: 30, t95: 2.042, t99: 2.750},
	{minDF: 10, t95: 2.228, t99: 3.169},
	{minDF: 5, t95: 2.571, t99: 4.032},
	{minDF: math.MinInt, t95: 2.776, t99: 4.604},
}

// TableCriticalValues is the bucketed approximation.
//
// Description:
//
//	Levels at or above 0.99 use the 99% column; every other level falls
//	back to the 95% column. Levels stricter than 0.99 therefore stay on
//	the 99% column instead of dropping back to 95%, which keeps the
//	critical value non-decreasing in the level.
//
// Thread Safety: Stateless; safe for concurrent use.
type TableCriticalValues struct{}

// CriticalValue implements CriticalValues.
func (TableCriticalValues) CriticalValue(df int, level float64) float64 {
	for _, b := range tBuckets {
		if df >= b.minDF {
			if level >= 0.99 {
				return b.t99
			}
			return b.t95
		}
	}
	// unreachable: the last bucket matches every df
	return tBuckets[len(tBuckets)-1].t95
}

// ExactCriticalValues computes the quantile of Student's t distribution.
//
// Degrees of freedom below 1 are clamped to 1. Levels outside (0, 1)
// are clamped to the nearest representable probability.
//
// Thread Safety: Stateless; safe for concurrent use.
type ExactCriticalValues struct{}

// CriticalValue implements CriticalValues.
func (ExactCriticalValues) CriticalValue(df int, level float64) float64 {
	if df < 1 {
		df = 1
	}
	level = math.Min(math.Max(level, 0), 1-1e-12)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return dist.Quantile(1 - (1-level)/2)
}

// CriticalValue returns the table critical value for df and level.
func CriticalValue(df int, level float64) float64 {
	return TableCriticalValues{}.CriticalValue(df, level)
}

// twoTailedPValue returns P(|T| > |t|) for Student's t with df degrees of
// freedom. Undefined inputs return 1.
func twoTailedPValue(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 || math.IsNaN(df) {
		return 1
	}
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return math.Min(math.Max(p, 0), 1)
}
