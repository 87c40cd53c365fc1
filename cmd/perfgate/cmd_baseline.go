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
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

func newBaselineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage stored baselines",
	}
	cmd.AddCommand(
		newBaselineSaveCmd(a),
		newBaselineShowCmd(a),
		newBaselineListCmd(a),
		newBaselineDeleteCmd(a),
	)
	return cmd
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(fn func(baseline.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newBaselineSaveCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "save <run>...",
		Short: "Store runs as baselines",
		Args:  cobra.MinimumNArgs(1),
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
			return a.withStore(func(store baseline.Store) error {
				for _, run := range runs {
					if err := store.Save(cmd.Context(), run.Key, run.ToRecord()); err != nil {
						return errors.Wrapf(err, "save baseline %q", run.Key)
					}
					a.logger.Info("baseline saved",
						slog.String("key", run.Key),
						slog.Int("samples", len(run.Samples)))
					fmt.Fprintf(a.stdout, "%s %s\n", a.styler.Success("saved"), run.Key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "override the key of a single run")
	return cmd
}

func newBaselineShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show a stored baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store baseline.Store) error {
				rec, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				format, err := gate.ParseFormat(a.flags.format)
				if err != nil {
					return err
				}
				if format == gate.FormatJSON {
					enc := json.NewEncoder(a.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(rec)
				}
				return a.printRecord(rec)
			})
		},
	}
}

func (a *app) printRecord(rec *baseline.Record) error {
	d, err := stats.Describe(rec.Samples, stats.WithCriticalValues(a.cfg.CriticalSource()))
	if err != nil {
		return errors.Mark(err, baseline.ErrInvalidBaseline)
	}

	fmt.Fprintln(a.stdout, a.styler.Title(rec.Key))
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	row := func(name, value string) { fmt.Fprintf(tw, "  %s\t%s\n", name, value) }
	if rec.Unit != "" {
		row("unit", rec.Unit)
	}
	row("samples", fmt.Sprint(d.SampleCount))
	row("mean", fmt.Sprintf("%.4g", d.Mean))
	row("median", fmt.Sprintf("%.4g", d.Median))
	row("stddev", fmt.Sprintf("%.4g", d.StandardDeviation))
	row("min / max", fmt.Sprintf("%.4g / %.4g", d.Min, d.Max))
	row("cv", fmt.Sprintf("%.2f%% (%s)", d.CoefficientOfVariation*100, d.Quality))
	row("ci", fmt.Sprintf("[%.4g, %.4g] at %.0f%%",
		d.ConfidenceInterval.Lower, d.ConfidenceInterval.Upper, d.ConfidenceInterval.Level*100))
	if len(rec.Auxiliary) > 0 {
		names := make([]string, 0, len(rec.Auxiliary))
		for name := range rec.Auxiliary {
			names = append(names, name)
		}
		sort.Strings(names)
		row("auxiliary", strings.Join(names, ", "))
	}
	row("updated", rec.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	return tw.Flush()
}

func newBaselineListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List baseline keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store baseline.Store) error {
				keys, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if a.flags.format == string(gate.FormatJSON) {
					return json.NewEncoder(a.stdout).Encode(map[string][]string{"keys": keys})
				}
				for _, key := range keys {
					fmt.Fprintln(a.stdout, key)
				}
				return nil
			})
		},
	}
}

func newBaselineDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored baseline",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store baseline.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s %s\n", a.styler.Success("deleted"), args[0])
				return nil
			})
		},
	}
}
