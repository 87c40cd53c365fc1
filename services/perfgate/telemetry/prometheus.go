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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidConfig is returned when the Prometheus configuration is invalid.
	ErrInvalidConfig = errors.New("invalid prometheus configuration")

	// ErrRegistrationFailed is returned when metric registration fails.
	ErrRegistrationFailed = errors.New("metric registration failed")
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "_other"

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	// Namespace is the metrics namespace (e.g., "perfgate"). Required.
	Namespace string

	// Subsystem is the metrics subsystem (e.g., "gate"). Optional.
	Subsystem string

	// Registry is the Prometheus registry to use.
	// If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// DurationBuckets are histogram buckets for check durations (seconds).
	DurationBuckets []float64

	// MaxLabelCardinality is the maximum number of unique values tracked
	// per label. Further values are mapped to "_other". Default: 1000.
	MaxLabelCardinality int
}

// DefaultPrometheusConfig returns a configuration with sensible defaults.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:           "perfgate",
		Subsystem:           "gate",
		DurationBuckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		MaxLabelCardinality: 1000,
	}
}

// Validate checks that the configuration is valid.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	return nil
}

// PrometheusSink exports comparisons as Prometheus metrics.
//
// Description:
//
//	Metrics are registered on creation and unregistered on Close when the
//	registry is a *prometheus.Registry. Keys become label values, so the
//	number of distinct keys is capped by MaxLabelCardinality.
//
// Metrics:
//   - comparisons_total{key,verdict}
//   - mean_difference_percent{key}
//   - p_value{key}
//   - coefficient_of_variation{key,side}
//   - check_duration_seconds{verdict}
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	config   *PrometheusConfig
	registry prometheus.Registerer

	comparisonsTotal *prometheus.CounterVec
	meanDiffPercent  *prometheus.GaugeVec
	pValue           *prometheus.GaugeVec
	cv               *prometheus.GaugeVec
	checkDuration    *prometheus.HistogramVec

	mu     sync.RWMutex
	closed bool

	collectors []prometheus.Collector

	labelMu        sync.RWMutex
	seenLabels     map[string]map[string]struct{}
	maxCardinality int
}

// NewPrometheusSink creates and registers the sink's collectors.
//
// Inputs:
//   - config: Prometheus configuration. Must not be nil.
//
// Outputs:
//   - *PrometheusSink: The created sink.
//   - error: ErrInvalidConfig or ErrRegistrationFailed.
//
// Limitations:
//   - A collector already registered with the same descriptor is reused
//     by the registry, so two sinks on one registry share series.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Mark(err, ErrInvalidConfig)
	}

	cfg := *config
	if cfg.DurationBuckets == nil {
		cfg.DurationBuckets = DefaultPrometheusConfig().DurationBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	maxCard := cfg.MaxLabelCardinality
	if maxCard <= 0 {
		maxCard = 1000
	}

	s := &PrometheusSink{
		config:         &cfg,
		registry:       registry,
		seenLabels:     make(map[string]map[string]struct{}),
		maxCardinality: maxCard,
	}

	s.comparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "comparisons_total",
			Help:      "Total comparisons by baseline key and verdict",
		},
		[]string{"key", "verdict"},
	)
	s.meanDiffPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mean_difference_percent",
			Help:      "Relative change of the primary mean in the last comparison",
		},
		[]string{"key"},
	)
	s.pValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "p_value",
			Help:      "Two-tailed Welch p-value of the last comparison",
		},
		[]string{"key"},
	)
	s.cv = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "coefficient_of_variation",
			Help:      "Coefficient of variation of the compared sample sets",
		},
		[]string{"key", "side"},
	)
	s.checkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "check_duration_seconds",
			Help:      "Duration of gate checks in seconds",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"verdict"},
	)

	s.collectors = []prometheus.Collector{
		s.comparisonsTotal,
		s.meanDiffPercent,
		s.pValue,
		s.cv,
		s.checkDuration,
	}
	for i, c := range s.collectors {
		if err := registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, errors.Mark(errors.Wrap(err, "register collector"), ErrRegistrationFailed)
			}
			s.collectors[i] = already.ExistingCollector
		}
	}
	s.bindExisting()

	return s, nil
}

// bindExisting points the typed fields at collectors that were already
// registered by an earlier sink.
func (s *PrometheusSink) bindExisting() {
	if c, ok := s.collectors[0].(*prometheus.CounterVec); ok {
		s.comparisonsTotal = c
	}
	if g, ok := s.collectors[1].(*prometheus.GaugeVec); ok {
		s.meanDiffPercent = g
	}
	if g, ok := s.collectors[2].(*prometheus.GaugeVec); ok {
		s.pValue = g
	}
	if g, ok := s.collectors[3].(*prometheus.GaugeVec); ok {
		s.cv = g
	}
	if h, ok := s.collectors[4].(*prometheus.HistogramVec); ok {
		s.checkDuration = h
	}
}

// RecordComparison records one comparison.
func (s *PrometheusSink) RecordComparison(ctx context.Context, data *ComparisonData) error {
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
	key = s.sanitizeLabel("key", key)

	verdict := data.Verdict
	if verdict == "" {
		verdict = "unknown"
	}
	verdict = s.sanitizeLabel("verdict", verdict)

	s.comparisonsTotal.WithLabelValues(key, verdict).Inc()
	s.meanDiffPercent.WithLabelValues(key).Set(data.MeanDifferencePercent)
	s.pValue.WithLabelValues(key).Set(data.PValue)
	s.cv.WithLabelValues(key, "baseline").Set(data.BaselineCV)
	s.cv.WithLabelValues(key, "current").Set(data.CurrentCV)
	s.checkDuration.WithLabelValues(verdict).Observe(data.Duration.Seconds())

	return nil
}

// Close unregisters the collectors from a *prometheus.Registry.
// After Close, RecordComparison returns ErrSinkClosed. Idempotent.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// DefaultRegisterer is also a *Registry, but unregistering from it
	// would drop series other components may still scrape.
	if reg, ok := s.registry.(*prometheus.Registry); ok && s.registry != prometheus.DefaultRegisterer {
		for _, c := range s.collectors {
			reg.Unregister(c)
		}
	}
	return nil
}

// sanitizeLabel maps values beyond MaxLabelCardinality to "_other".
func (s *PrometheusSink) sanitizeLabel(labelName, labelValue string) string {
	s.labelMu.RLock()
	seen := s.seenLabels[labelName]
	if seen != nil {
		if _, ok := seen[labelValue]; ok {
			s.labelMu.RUnlock()
			return labelValue
		}
		if len(seen) >= s.maxCardinality {
			s.labelMu.RUnlock()
			return otherLabel
		}
	}
	s.labelMu.RUnlock()

	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	// re-check under the write lock
	if s.seenLabels[labelName] == nil {
		s.seenLabels[labelName] = make(map[string]struct{})
	}
	if _, ok := s.seenLabels[labelName][labelValue]; ok {
		return labelValue
	}
	if len(s.seenLabels[labelName]) >= s.maxCardinality {
		return otherLabel
	}
	s.seenLabels[labelName][labelValue] = struct{}{}
	return labelValue
}

var _ Sink = (*PrometheusSink)(nil)
