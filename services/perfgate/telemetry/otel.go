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
	"sync"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of OTelSink.
const meterName = "github.com/AleutianAI/perfgate/services/perfgate/telemetry"

// ErrOTelInitFailed is returned when an instrument cannot be created.
var ErrOTelInitFailed = errors.New("opentelemetry initialization failed")

// OTelConfig configures the OpenTelemetry sink.
type OTelConfig struct {
	// ServiceVersion is the instrumentation version.
	// Optional.
	ServiceVersion string

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider
}

// OTelSink records comparisons as OpenTelemetry metrics.
//
// Description:
//
//	OTelSink mirrors the Prometheus sink on the OpenTelemetry metrics API,
//	so any sdk/metric reader (Prometheus bridge, stdout, OTLP) can export
//	gate outcomes. Instruments:
//	  - perfgate.comparisons{key, verdict} counter
//	  - perfgate.mean_difference_percent{key} histogram
//	  - perfgate.p_value{key} histogram
//	  - perfgate.coefficient_of_variation{key, side} gauge
//	  - perfgate.check.duration{verdict} histogram in seconds
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	comparisons    metric.Int64Counter
	meanDifference metric.Float64Histogram
	pValue         metric.Float64Histogram
	cv             metric.Float64Gauge
	duration       metric.Float64Histogram

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates the instruments on the configured meter provider.
// A nil config uses the global provider.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	var cfg OTelConfig
	if config != nil {
		cfg = *config
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	s := &OTelSink{}
	var err error

	s.comparisons, err = meter.Int64Counter(
		"perfgate.comparisons",
		metric.WithDescription("Total gate comparisons by verdict"),
		metric.WithUnit("{comparison}"),
	)
	if err != nil {
		return nil, errors.Mark(err, ErrOTelInitFailed)
	}

	s.meanDifference, err = meter.Float64Histogram(
		"perfgate.mean_difference_percent",
		metric.WithDescription("Relative change of the primary mean"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, errors.Mark(err, ErrOTelInitFailed)
	}

	s.pValue, err = meter.Float64Histogram(
		"perfgate.p_value",
		metric.WithDescription("Two-tailed Welch p-value"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, errors.Mark(err, ErrOTelInitFailed)
	}

	s.cv, err = meter.Float64Gauge(
		"perfgate.coefficient_of_variation",
		metric.WithDescription("Coefficient of variation of the last compared samples"),
	)
	if err != nil {
		return nil, errors.Mark(err, ErrOTelInitFailed)
	}

	s.duration, err = meter.Float64Histogram(
		"perfgate.check.duration",
		metric.WithDescription("Duration of gate checks"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Mark(err, ErrOTelInitFailed)
	}

	return s, nil
}

// RecordComparison implements Sink.
func (s *OTelSink) RecordComparison(ctx context.Context, data *ComparisonData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	key := data.Key
	if key == "" {
		key = "unknown"
	}
	verdict := data.Verdict
	if verdict == "" {
		verdict = "unknown"
	}
	keyAttr := attribute.String("key", key)
	verdictAttr := attribute.String("verdict", verdict)

	s.comparisons.Add(ctx, 1, metric.WithAttributes(keyAttr, verdictAttr))
	s.meanDifference.Record(ctx, data.MeanDifferencePercent, metric.WithAttributes(keyAttr))
	s.pValue.Record(ctx, data.PValue, metric.WithAttributes(keyAttr))
	s.cv.Record(ctx, data.BaselineCV, metric.WithAttributes(keyAttr, attribute.String("side", "baseline")))
	s.cv.Record(ctx, data.CurrentCV, metric.WithAttributes(keyAttr, attribute.String("side", "current")))
	s.duration.Record(ctx, data.Duration.Seconds(), metric.WithAttributes(verdictAttr))
	return nil
}

// Close marks the sink closed. The meter provider is owned by the caller.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*OTelSink)(nil)
