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
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/ingest"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		requireBaseline bool
		updateBaseline  bool
		key             string
	)
	cmd := &cobra.Command{
		Use:   "check <run>...",
		Short: "Check runs against their stored baselines",
		Long: `Check compares every run against the baseline stored under its key.

Benchmark output without --benchmark checks every benchmark in the file.
The exit code is the worst outcome: 2 if any check failed, 1 if any run
regressed, 0 otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.collectRuns(args)
			if err != nil {
				return err
			}
			if key != "" {
				if len(runs) != 1 {
					return errors.Newf("--key needs exactly one run, got %d", len(runs))
				}
				runs[0].Key = key
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var opts []gate.Option
			if cmd.Flags().Changed("require-baseline") {
				opts = append(opts, gate.WithRequireBaseline(requireBaseline))
			}
			if cmd.Flags().Changed("update-baseline") {
				opts = append(opts, gate.WithUpdateBaselineOnPass(updateBaseline))
			}
			sink, err := a.comparisonSink(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if sink != nil {
				defer sink.Close()
				opts = append(opts, gate.WithSink(sink))
			}
			g := a.newGate(store, opts...)

			outcomes, err := g.CheckAll(cmd.Context(), runs)
			if err != nil {
				return err
			}
			if err := a.render(outcomes); err != nil {
				return err
			}
			return exitWith(gate.ExitCode(outcomes))
		},
	}
	cmd.Flags().BoolVar(&requireBaseline, "require-baseline", true, "fail when no baseline exists instead of seeding it")
	cmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "replace the baseline after a passing check")
	cmd.Flags().StringVar(&key, "key", "", "override the key of a single run")
	return cmd
}

// collectRuns reads every path. Benchmark output without --benchmark
// yields one run per benchmark.
func (a *app) collectRuns(paths []string) ([]*ingest.Run, error) {
	var runs []*ingest.Run
	for _, path := range paths {
		if ingest.FormatFromPath(path) != ingest.FormatBench || a.flags.benchmark != "" {
			run, err := a.readRun(path)
			if err != nil {
				return nil, err
			}
			runs = append(runs, run)
			continue
		}

		all, err := a.readBenchAll(path)
		if err != nil {
			return nil, err
		}
		for _, name := range ingest.BenchNames(all) {
			runs = append(runs, all[name])
		}
	}
	return runs, nil
}

func (a *app) readBenchAll(path string) (map[string]*ingest.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	defer f.Close()

	all, skipped, err := ingest.DecodeBenchAll(f, path)
	a.logSkipped(path, skipped)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return all, nil
}
