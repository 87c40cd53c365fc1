// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline persists the reference sample sets that new runs are
// compared against.
//
// A Store maps a key (typically benchmark name plus configuration) to a
// Record. Three backends are provided: MemoryStore for tests and the HTTP
// service's ephemeral mode, FileStore with one JSON file per key, and
// BadgerStore on an embedded BadgerDB.
package baseline

import (
	"context"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/AleutianAI/perfgate/pkg/validation"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrBaselineNotFound indicates no baseline exists for the key.
	ErrBaselineNotFound = errors.New("baseline not found")

	// ErrInvalidBaseline indicates the baseline data is malformed.
	ErrInvalidBaseline = errors.New("invalid baseline data")
)

// -----------------------------------------------------------------------------
// Store Interface
// -----------------------------------------------------------------------------

// Store stores and retrieves baselines.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the baseline for key.
	// Returns ErrBaselineNotFound if no baseline exists.
	Load(ctx context.Context, key string) (*Record, error)

	// Save stores rec under key, replacing any existing baseline.
	Save(ctx context.Context, key string, rec *Record) error

	// List returns all keys in ascending order.
	List(ctx context.Context) ([]string, error)

	// Delete removes a baseline.
	// Returns ErrBaselineNotFound if no baseline exists.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// Record is a stored baseline.
type Record struct {
	// Key identifies the baseline.
	Key string `json:"key"`

	// Unit of the primary samples (e.g., "ms").
	Unit string `json:"unit,omitempty"`

	// Configuration is the identity of the run configuration.
	Configuration map[string]string `json:"configuration,omitempty"`

	// Samples are the primary metric samples.
	Samples []float64 `json:"samples"`

	// Auxiliary holds named auxiliary metric samples.
	Auxiliary map[string][]float64 `json:"auxiliary,omitempty"`

	// CreatedAt is when the baseline was first saved.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the baseline was last saved.
	UpdatedAt time.Time `json:"updated_at"`

	// Metadata holds arbitrary additional data (commit, host, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the record can serve as a baseline.
func (r *Record) Validate() error {
	if r == nil {
		return errors.Wrap(ErrInvalidBaseline, "record must not be nil")
	}
	if len(r.Samples) == 0 {
		return errors.Wrapf(ErrInvalidBaseline, "baseline %q has no samples", r.Key)
	}
	if i := nonFinite(r.Samples); i >= 0 {
		return errors.Wrapf(ErrInvalidBaseline, "baseline %q sample %d is %v", r.Key, i, r.Samples[i])
	}
	for name, values := range r.Auxiliary {
		if i := nonFinite(values); i >= 0 {
			return errors.Wrapf(ErrInvalidBaseline, "baseline %q metric %q sample %d is %v", r.Key, name, i, values[i])
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Samples = slices.Clone(r.Samples)
	c.Configuration = maps.Clone(r.Configuration)
	c.Metadata = maps.Clone(r.Metadata)
	if r.Auxiliary != nil {
		c.Auxiliary = make(map[string][]float64, len(r.Auxiliary))
		for k, v := range r.Auxiliary {
			c.Auxiliary[k] = slices.Clone(v)
		}
	}
	return &c
}

// stamp prepares a copy of rec for storage under key.
func stamp(key string, rec *Record, now time.Time) (*Record, error) {
	if err := validation.ValidateKey(key); err != nil {
		return nil, errors.Mark(err, ErrInvalidBaseline)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	c := rec.Clone()
	c.Key = key
	c.UpdatedAt = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	return c, nil
}

func nonFinite(values []float64) int {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}
