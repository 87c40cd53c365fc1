// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports gate decisions as metrics.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilData is returned when nil data is provided to a recording method.
	ErrNilData = errors.New("data must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a composite sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink records comparison outcomes.
//
// Thread Safety: All implementations must be safe for concurrent use.
type Sink interface {
	// RecordComparison records one gate decision.
	// Returns ErrSinkClosed after Close.
	RecordComparison(ctx context.Context, data *ComparisonData) error

	// Close releases resources. Idempotent.
	Close() error
}

// ComparisonData is the telemetry view of one comparison.
type ComparisonData struct {
	// Key is the baseline key.
	Key string

	// Verdict is "no_change", "improvement" or "regression".
	Verdict string

	// MeanDifferencePercent is the relative change of the primary mean.
	MeanDifferencePercent float64

	// PValue is the two-tailed Welch p-value.
	PValue float64

	// BaselineCV and CurrentCV are the coefficients of variation.
	BaselineCV float64
	CurrentCV  float64

	// Duration is how long the check took.
	Duration time.Duration
}

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink forwards to several sinks. One sink's failure does not
// prevent the others from receiving the data.
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a composite of the non-nil sinks.
// Returns ErrNoSinks if none remain.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// RecordComparison forwards data to every child sink.
func (c *CompositeSink) RecordComparison(ctx context.Context, data *ComparisonData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrSinkClosed
	}
	sinks := c.sinks
	c.mu.RUnlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.RecordComparison(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child sink. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sinks := c.sinks
	c.mu.Unlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// No-Op Sink
// -----------------------------------------------------------------------------

// NoOpSink discards all data. It is the default when telemetry is off.
type NoOpSink struct{}

// NewNoOpSink creates a no-op sink.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

// RecordComparison discards the data.
func (n *NoOpSink) RecordComparison(ctx context.Context, data *ComparisonData) error {
	return nil
}

// Close is a no-op.
func (n *NoOpSink) Close() error {
	return nil
}

var (
	_ Sink = (*CompositeSink)(nil)
	_ Sink = (*NoOpSink)(nil)
)
