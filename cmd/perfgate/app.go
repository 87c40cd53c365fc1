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
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/pkg/logging"
	"github.com/AleutianAI/perfgate/pkg/ux"
	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/compare"
	"github.com/AleutianAI/perfgate/services/perfgate/config"
	"github.com/AleutianAI/perfgate/services/perfgate/gate"
)

// defaultConfigFile is read when --config is not given and it exists.
const defaultConfigFile = "perfgate.yaml"

// flags holds the persistent command line flags.
type flags struct {
	configPath     string
	format         string
	benchmark      string
	noColor        bool
	trace          bool
	logLevel       string
	alpha          float64
	criticalValues string
	storeBackend   string
	storePath      string
}

// app is the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  flags

	cfg      config.Config
	logger   *logging.Logger
	styler   *ux.Styler
	shutdown []func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		styler: ux.NewStylerMode(ux.ModePlain),
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
// It runs before every command.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.flags.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	if fs.Changed("alpha") {
		cfg.SignificanceLevel = a.flags.alpha
	}
	if fs.Changed("critical-values") {
		cfg.CriticalValues = a.flags.criticalValues
	}
	if fs.Changed("store-backend") {
		cfg.Store.Backend = a.flags.storeBackend
	}
	if fs.Changed("store") {
		cfg.Store.Path = a.flags.storePath
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Mark(err, config.ErrInvalidConfig)
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "perfgate",
		JSON:    cfg.Log.JSON,
		Output:  a.stderr,
	})
	a.styler = ux.NewStyler(a.stdout, a.flags.noColor)

	if a.flags.trace {
		stop, err := setupTracing(cmd.Context(), tracingOptions{
			ServiceName: cfg.Telemetry.ServiceName,
			Stdout:      a.stderr,
		})
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, stop)
	}
	return nil
}

// close flushes tracing and closes the logger.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("shutdown failed", slog.String("error", err.Error()))
		}
	}
	a.shutdown = nil
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// openStore opens the configured baseline store.
func (a *app) openStore() (baseline.Store, error) {
	store, err := baseline.Open(a.cfg.Store, a.logger.Slog())
	if err != nil {
		return nil, errors.Wrap(err, "open baseline store")
	}
	return store, nil
}

// newGate builds a gate from the configuration with extra options.
func (a *app) newGate(store baseline.Store, opts ...gate.Option) *gate.Gate {
	base := []gate.Option{
		gate.WithSignificanceLevel(a.cfg.SignificanceLevel),
		gate.WithCriticalValues(a.cfg.CriticalSource()),
		gate.WithRequireBaseline(a.cfg.RequireBaseline),
		gate.WithUpdateBaselineOnPass(a.cfg.UpdateBaselineOnPass),
		gate.WithLogger(a.logger.Slog()),
	}
	return gate.NewGate(store, append(base, opts...)...)
}

// render writes outcomes in the selected format.
func (a *app) render(outcomes []gate.Outcome) error {
	format, err := gate.ParseFormat(a.flags.format)
	if err != nil {
		return err
	}
	return gate.Render(a.stdout, format, outcomes, a.verdictStyle)
}

func (a *app) verdictStyle(v compare.Verdict, label string) string {
	switch v {
	case compare.Regression:
		return a.styler.Error(label)
	case compare.Improvement:
		return a.styler.Success(label)
	default:
		return a.styler.Muted(label)
	}
}
