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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the regression gate HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			if cfg.Telemetry.OTLPEndpoint != "" && !a.flags.trace {
				stop, err := setupTracing(ctx, tracingOptions{
					ServiceName:  cfg.Telemetry.ServiceName,
					OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
				})
				if err != nil {
					return err
				}
				a.shutdown = append(a.shutdown, stop)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			registry := prometheus.NewRegistry()
			if cfg.Telemetry.Prometheus {
				registry.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
			}
			var opts []gate.Option
			sink, err := a.comparisonSink(ctx, registry)
			if err != nil {
				return err
			}
			if sink != nil {
				defer sink.Close()
				opts = append(opts, gate.WithSink(sink))
			}

			srv := server.New(server.Config{
				Addr:            cfg.Server.Addr,
				RateLimit:       cfg.Server.RateLimit,
				Burst:           cfg.Server.Burst,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				ServiceName:     cfg.Telemetry.ServiceName,
				Version:         version,
			}, server.Deps{
				Store:             store,
				Gate:              a.newGate(store, opts...),
				Gatherer:          registry,
				Critical:          cfg.CriticalSource(),
				SignificanceLevel: cfg.SignificanceLevel,
				Logger:            a.logger.Slog(),
			})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
