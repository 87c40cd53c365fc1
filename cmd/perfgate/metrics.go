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

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/perfgate/services/perfgate/telemetry"
)

const (
	exporterPrometheus = "prometheus"
	exporterStdout     = "stdout"
)

type metricsOptions struct {
	ServiceName string

	// Exporter is "prometheus" or "stdout".
	Exporter string

	// Registry receives the Prometheus bridge. Required for "prometheus".
	Registry prometheus.Registerer

	// Stdout receives "stdout" exports.
	Stdout io.Writer
}

// setupMetrics creates a meter provider with the selected reader.
func setupMetrics(ctx context.Context, opts metricsOptions) (*metric.MeterProvider, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "perfgate"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(opts.ServiceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	var reader metric.Reader
	switch opts.Exporter {
	case exporterPrometheus:
		if opts.Registry == nil {
			return nil, errors.New("prometheus metric exporter needs a registry")
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(opts.Registry))
		if err != nil {
			return nil, errors.Wrap(err, "create prometheus exporter")
		}
		reader = exporter
	case exporterStdout:
		w := opts.Stdout
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, "create stdout metric exporter")
		}
		reader = metric.NewPeriodicReader(exporter)
	default:
		return nil, errors.Newf("unknown metric exporter %q", opts.Exporter)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	), nil
}

// comparisonSink assembles the telemetry sinks enabled by configuration.
// registry is nil outside the HTTP service, which disables the sinks that
// need a scrape endpoint. Returns nil when no sink is enabled.
func (a *app) comparisonSink(ctx context.Context, registry prometheus.Registerer) (telemetry.Sink, error) {
	tcfg := a.cfg.Telemetry
	var sinks []telemetry.Sink

	if tcfg.Prometheus && registry != nil {
		pcfg := telemetry.DefaultPrometheusConfig()
		pcfg.Namespace = tcfg.Namespace
		pcfg.Registry = registry
		sink, err := telemetry.NewPrometheusSink(pcfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	switch {
	case tcfg.MetricExporter == "":
	case tcfg.MetricExporter == exporterPrometheus && registry == nil:
		a.logger.Debug("prometheus metric exporter only runs under serve")
	default:
		mp, err := setupMetrics(ctx, metricsOptions{
			ServiceName: tcfg.ServiceName,
			Exporter:    tcfg.MetricExporter,
			Registry:    registry,
			Stdout:      a.stderr,
		})
		if err != nil {
			return nil, err
		}
		a.shutdown = append(a.shutdown, mp.Shutdown)
		sink, err := telemetry.NewOTelSink(&telemetry.OTelConfig{
			MeterProvider:  mp,
			ServiceVersion: version,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	a.logger.Debug("telemetry sinks enabled", slog.Int("count", len(sinks)))
	composite, err := telemetry.NewCompositeSink(sinks...)
	if err != nil {
		return nil, err
	}
	return composite, nil
}
