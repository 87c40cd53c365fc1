// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/services/perfgate/compare"
	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/ingest"
)

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <baseline> <current>",
		Short: "Compare two runs without a baseline store",
		Long: `Compare reads a baseline run and a current run from JSON, YAML or
go test -bench output files and reports the Welch t-test verdict.

The exit code is 0 for no change or an improvement, 1 for a regression
and 2 when the runs cannot be compared.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := a.readRun(args[0])
			if err != nil {
				return err
			}
			cur, err := a.readRun(args[1])
			if err != nil {
				return err
			}
			if base.Unit != "" && cur.Unit != "" && base.Unit != cur.Unit {
				return errors.Mark(
					errors.Newf("baseline unit %q, current unit %q", base.Unit, cur.Unit),
					gate.ErrUnitMismatch)
			}

			start := time.Now()
			result, err := compare.Compare(base.Samples, cur.Samples,
				compare.WithSignificanceLevel(a.cfg.SignificanceLevel),
				compare.WithCriticalValues(a.cfg.CriticalSource()),
				compare.WithAuxiliaryMetrics(ingest.PairAuxiliary(base.Auxiliary, cur.Auxiliary)),
			)
			if err != nil {
				return err
			}

			key := cur.Key
			if key == "" {
				key = base.Key
			}
			unit := cur.Unit
			if unit == "" {
				unit = base.Unit
			}
			decision := &gate.Decision{
				ID:        uuid.New(),
				Key:       key,
				Unit:      unit,
				Verdict:   result.Verdict(),
				Result:    result,
				Timestamp: start,
				Duration:  time.Since(start),
			}
			a.logger.Debug("comparison completed",
				slog.String("key", key),
				slog.String("verdict", decision.Verdict.String()),
				slog.Float64("p_value", result.Welch.PValue))

			if err := a.render([]gate.Outcome{{Key: key, Decision: decision}}); err != nil {
				return err
			}
			return exitWith(decision.ExitCode())
		},
	}
}

// readRun reads one run, honouring --benchmark for benchmark output.
func (a *app) readRun(path string) (*ingest.Run, error) {
	run, skipped, err := ingest.Read(path, a.flags.benchmark)
	a.logSkipped(path, skipped)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return run, nil
}

func (a *app) logSkipped(path string, skipped []error) {
	for _, err := range skipped {
		a.logger.Warn("skipped malformed benchmark line",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
