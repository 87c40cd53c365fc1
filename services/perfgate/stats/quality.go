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
)

// QualityRating grades how noisy a sample set is.
type QualityRating int

const (
	// QualityExcellent indicates CV < 0.05.
	QualityExcellent QualityRating = iota
	// QualityGood indicates 0.05 <= CV < 0.10.
	QualityGood
	// QualityFair indicates 0.10 <= CV < 0.20.
	QualityFair
	// QualityPoor indicates CV >= 0.20.
	QualityPoor
)

// String returns the string representation.
func (q QualityRating) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (q QualityRating) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QualityRating) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "excellent":
		*q = QualityExcellent
	case "good":
		*q = QualityGood
	case "fair":
		*q = QualityFair
	case "poor":
		*q = QualityPoor
	default:
		return errors.Newf("unknown quality rating %q", text)
	}
	return nil
}

// Classify maps a coefficient of variation to a QualityRating.
//
// The magnitude of cv is used, so a set with a negative mean is graded on
// its noise rather than its sign.
func Classify(cv float64) QualityRating {
	absCV := math.Abs(cv)
	switch {
	case absCV < 0.05:
		return QualityExcellent
	case absCV < 0.10:
		return QualityGood
	case absCV < 0.20:
		return QualityFair
	default:
		return QualityPoor
	}
}
