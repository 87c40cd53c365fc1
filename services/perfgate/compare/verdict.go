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
	"strings"

	"github.com/cockroachdb/errors"
)

// Exit codes of the perfgate CLI.
const (
	// ExitPass means no regression was detected.
	ExitPass = 0

	// ExitRegression means a significant regression was detected.
	ExitRegression = 1

	// ExitError means no comparison could be made.
	ExitError = 2
)

// Verdict is the outcome of a comparison.
type Verdict int

const (
	// NoChange means the difference is not significant.
	NoChange Verdict = iota

	// Improvement means current is significantly lower than baseline.
	Improvement

	// Regression means current is significantly higher than baseline.
	Regression
)

// String returns the string representation.
func (v Verdict) String() string {
	switch v {
	case NoChange:
		return "no_change"
	case Improvement:
		return "improvement"
	case Regression:
		return "regression"
	default:
		return "unknown"
	}
}

// ParseVerdict parses the output of Verdict.String.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no_change", "nochange":
		return NoChange, nil
	case "improvement":
		return Improvement, nil
	case "regression":
		return Regression, nil
	default:
		return NoChange, errors.Newf("unknown verdict %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ExitCode maps the verdict onto the process exit convention.
func (v Verdict) ExitCode() int {
	if v == Regression {
		return ExitRegression
	}
	return ExitPass
}

// VerdictOf maps the flags of a Result to a Verdict. A nil result is
// NoChange.
func VerdictOf(r *Result) Verdict {
	switch {
	case r == nil:
		return NoChange
	case r.IsRegression:
		return Regression
	case r.IsImprovement:
		return Improvement
	default:
		return NoChange
	}
}
