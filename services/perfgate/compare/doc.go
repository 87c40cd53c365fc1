// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare aggregates two sample sets into a comparison result and
// derives a verdict from it.
//
// Compare summarises both sides with stats.Describe, runs Welch's t-test,
// computes the confidence interval of the mean difference and, for every
// auxiliary metric observed on both sides, a MetricComparison of the means.
// A higher primary value is worse: a significant increase is a regression
// and a significant decrease is an improvement.
//
// Percentages are always expressed already scaled by 100. A change from 50
// to 55 is reported as 10, never 0.1. Presentation layers print the value
// as is.
//
// Verdict maps a Result to NoChange, Improvement or Regression, and
// Verdict.ExitCode maps that onto the process exit convention used by the
// perfgate CLI.
package compare
