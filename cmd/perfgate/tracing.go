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
	"os"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type tracingOptions struct {
	// ServiceName is the resource service name.
	ServiceName string

	// Stdout receives pretty-printed spans when OTLPEndpoint is empty.
	Stdout io.Writer

	// OTLPEndpoint is a collector address for the gRPC exporter.
	OTLPEndpoint string
}

// setupTracing installs a global tracer provider and returns its shutdown
// function.
func setupTracing(ctx context.Context, opts tracingOptions) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "perfgate"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(opts.ServiceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	var processor sdktrace.SpanProcessor
	var conn *grpc.ClientConn
	if opts.OTLPEndpoint != "" {
		conn, err = grpc.NewClient(opts.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create gRPC connection to collector")
		}
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "failed to create trace exporter")
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	} else {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(opts.Stdout),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create stdout exporter")
		}
		processor = sdktrace.NewSimpleSpanProcessor(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if conn != nil {
			err = errors.CombineErrors(err, conn.Close())
		}
		return err
	}, nil
}
