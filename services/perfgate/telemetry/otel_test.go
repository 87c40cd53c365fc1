// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestOTelSink(t *testing.T) (*OTelSink, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	sink, err := NewOTelSink(&OTelConfig{MeterProvider: mp, ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("NewOTelSink() error = %v", err)
	}
	return sink, reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelSink_RecordComparison(t *testing.T) {
	sink, reader := newTestOTelSink(t)
	ctx := context.Background()

	if err := sink.RecordComparison(ctx, sampleData("render/frame", "regression")); err != nil {
		t.Fatalf("RecordComparison() error = %v", err)
	}
	if err := sink.RecordComparison(ctx, sampleData("render/frame", "regression")); err != nil {
		t.Fatalf("RecordComparison() error = %v", err)
	}

	metrics := collect(t, reader)

	for _, name := range []string{
		"perfgate.comparisons",
		"perfgate.mean_difference_percent",
		"perfgate.p_value",
		"perfgate.coefficient_of_variation",
		"perfgate.check.duration",
	} {
		if _, ok := metrics[name]; !ok {
			t.Errorf("metric %s not exported", name)
		}
	}

	sum, ok := metrics["perfgate.comparisons"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("perfgate.comparisons data is %T", metrics["perfgate.comparisons"].Data)
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("comparisons has %d data points, want 1", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("comparisons = %d, want 2", dp.Value)
	}
	if v, _ := dp.Attributes.Value(attribute.Key("verdict")); v.AsString() != "regression" {
		t.Errorf("verdict attribute = %q, want regression", v.AsString())
	}

	gauge, ok := metrics["perfgate.coefficient_of_variation"].Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("coefficient_of_variation data is %T", metrics["perfgate.coefficient_of_variation"].Data)
	}
	if len(gauge.DataPoints) != 2 {
		t.Errorf("coefficient_of_variation has %d data points, want 2 (one per side)", len(gauge.DataPoints))
	}
}

func TestOTelSink_EmptyLabels(t *testing.T) {
	sink, reader := newTestOTelSink(t)

	if err := sink.RecordComparison(context.Background(), &ComparisonData{}); err != nil {
		t.Fatalf("RecordComparison() error = %v", err)
	}

	sum := collect(t, reader)["perfgate.comparisons"].Data.(metricdata.Sum[int64])
	v, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("key"))
	if v.AsString() != "unknown" {
		t.Errorf("key attribute = %q, want unknown", v.AsString())
	}
}

func TestOTelSink_Errors(t *testing.T) {
	sink, _ := newTestOTelSink(t)

	//nolint:staticcheck // nil context is the case under test
	if err := sink.RecordComparison(nil, sampleData("k", "no_change")); !errors.Is(err, ErrNilContext) {
		t.Errorf("nil ctx error = %v, want ErrNilContext", err)
	}
	if err := sink.RecordComparison(context.Background(), nil); !errors.Is(err, ErrNilData) {
		t.Errorf("nil data error = %v, want ErrNilData", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sink.RecordComparison(context.Background(), sampleData("k", "no_change")); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("closed error = %v, want ErrSinkClosed", err)
	}
}

func TestOTelSink_GlobalProvider(t *testing.T) {
	sink, err := NewOTelSink(nil)
	if err != nil {
		t.Fatalf("NewOTelSink(nil) error = %v", err)
	}
	if err := sink.RecordComparison(context.Background(), sampleData("k", "no_change")); err != nil {
		t.Errorf("RecordComparison() error = %v", err)
	}
}

func TestCompositeSink_FansOutToOTelAndPrometheus(t *testing.T) {
	prom, _ := newTestSink(t, 100)
	otelSink, reader := newTestOTelSink(t)

	composite, err := NewCompositeSink(prom, nil, otelSink)
	if err != nil {
		t.Fatalf("NewCompositeSink() error = %v", err)
	}
	if err := composite.RecordComparison(context.Background(), sampleData("k", "improvement")); err != nil {
		t.Fatalf("RecordComparison() error = %v", err)
	}

	if _, ok := collect(t, reader)["perfgate.comparisons"]; !ok {
		t.Error("otel sink did not receive the comparison")
	}
}
