// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats reduces repeated scalar measurements to descriptive
// statistics and decides whether two sample sets differ significantly.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                              STATS                               │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│   SampleSet ──► Describe ──► Descriptive ──► Classify(CV)        │
//	│                    │          • mean, stddev, min/max           │
//	│                    │          • median (interpolated)           │
//	│                    │          • confidence interval             │
//	│                    ▼                                             │
//	│             CriticalValues ◄── Welch(baseline, current, α)       │
//	│             • table (default)        • t statistic              │
//	│             • exact (inverse CDF)    • Welch–Satterthwaite df   │
//	│                                                                  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Conventions
//
// Standard deviation is the Bessel-corrected sample deviation. A singleton
// set has a standard deviation of zero and a coefficient of variation of
// zero. An empty set is a caller bug and is reported as ErrEmptySampleSet.
//
// Welch treats a singleton set's variance contribution as zero. When both
// contributions vanish and either side is a singleton, the test reports the
// difference as not significant because there is no variance information
// to test against. This is a known limitation of single-iteration runs.
//
// # Thread Safety
//
// Every function in this package is pure and safe for concurrent use.
// Inputs are never modified.
package stats
