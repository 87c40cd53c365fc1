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
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "perfgate",
		Short: "Statistical performance-regression gate",
		Long: `perfgate compares a current set of benchmark samples against a stored
baseline with Welch's t-test and reports whether the change is a
statistically significant regression, an improvement, or no change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "config file (default ./perfgate.yaml if present)")
	pf.StringVarP(&a.flags.format, "format", "f", "text", "output format: text, markdown or json")
	pf.StringVarP(&a.flags.benchmark, "benchmark", "b", "", "benchmark to select from go test -bench output")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable coloured output")
	pf.BoolVar(&a.flags.trace, "trace", false, "print OpenTelemetry spans to stderr")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.Float64Var(&a.flags.alpha, "alpha", stats.DefaultSignificanceLevel, "significance level in (0, 1)")
	pf.StringVar(&a.flags.criticalValues, "critical-values", "table", "critical values: table or exact")
	pf.StringVar(&a.flags.storeBackend, "store-backend", "", "baseline store: memory, file or badger")
	pf.StringVar(&a.flags.storePath, "store", "", "baseline store directory")

	root.AddCommand(
		newCompareCmd(a),
		newCheckCmd(a),
		newBaselineCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the perfgate version",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "perfgate %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
