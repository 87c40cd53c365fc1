// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest decodes measurement runs handed over by the collection
// layer: run documents in JSON or YAML, and `go test -bench` output.
package ingest

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/perfgate/pkg/validation"
	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/compare"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

// ErrInvalidRun indicates a run cannot be compared.
var ErrInvalidRun = errors.New("invalid run")

// Run is one collected measurement run.
type Run struct {
	// Key identifies what was measured under which configuration.
	Key string `json:"key" yaml:"key" binding:"required"`

	// Unit of the primary samples (e.g., "ms").
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`

	// Configuration is the identity of the run configuration.
	Configuration map[string]string `json:"configuration,omitempty" yaml:"configuration,omitempty"`

	// Samples are the primary metric samples. Higher is worse.
	Samples []float64 `json:"samples" yaml:"samples" binding:"required,min=1"`

	// Auxiliary holds named auxiliary metric samples.
	Auxiliary map[string][]float64 `json:"auxiliary,omitempty" yaml:"auxiliary,omitempty"`

	// Metadata holds free-form annotations such as commit or host.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks that the run has a key and finite primary samples.
// Auxiliary metrics are checked when compared.
func (r *Run) Validate() error {
	if r == nil {
		return errors.Wrap(ErrInvalidRun, "run must not be nil")
	}
	if err := validation.ValidateKey(r.Key); err != nil {
		return errors.Mark(err, ErrInvalidRun)
	}
	if err := stats.CheckSamples(r.Samples); err != nil {
		return errors.Mark(errors.Wrapf(err, "run %q", r.Key), ErrInvalidRun)
	}
	return nil
}

// ToRecord converts the run into a baseline record.
func (r *Run) ToRecord() *baseline.Record {
	rec := &baseline.Record{
		Key:           r.Key,
		Unit:          r.Unit,
		Configuration: maps.Clone(r.Configuration),
		Samples:       slices.Clone(r.Samples),
		Metadata:      maps.Clone(r.Metadata),
	}
	if r.Auxiliary != nil {
		rec.Auxiliary = make(map[string][]float64, len(r.Auxiliary))
		for k, v := range r.Auxiliary {
			rec.Auxiliary[k] = slices.Clone(v)
		}
	}
	return rec
}

// RunFromRecord converts a baseline record into a run.
func RunFromRecord(rec *baseline.Record) *Run {
	if rec == nil {
		return nil
	}
	c := rec.Clone()
	return &Run{
		Key:           c.Key,
		Unit:          c.Unit,
		Configuration: c.Configuration,
		Samples:       c.Samples,
		Auxiliary:     c.Auxiliary,
		Metadata:      c.Metadata,
	}
}

// PairAuxiliary joins baseline and current auxiliary metrics by name. A
// metric present on one side only is kept with an empty other side, which
// compare omits.
func PairAuxiliary(baseline, current map[string][]float64) map[string]compare.MetricSamples {
	if len(baseline) == 0 && len(current) == 0 {
		return nil
	}
	out := make(map[string]compare.MetricSamples, len(current))
	for name, values := range baseline {
		out[name] = compare.MetricSamples{Baseline: values, Current: current[name]}
	}
	for name, values := range current {
		if _, ok := out[name]; !ok {
			out[name] = compare.MetricSamples{Current: values}
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Run Documents
// -----------------------------------------------------------------------------

// Format is the encoding of a run document.
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatBench Format = "bench"
)

// FormatFromPath infers the format from the file extension. Unknown
// extensions are treated as YAML, which also accepts JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".bench", ".txt", ".out":
		return FormatBench
	default:
		return FormatYAML
	}
}

// DecodeRun decodes and validates one run document.
func DecodeRun(r io.Reader, format Format) (*Run, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read run")
	}

	var run Run
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&run); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode JSON run"), ErrInvalidRun)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&run); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode YAML run"), ErrInvalidRun)
		}
	default:
		return nil, errors.Newf("unsupported run format %q", format)
	}

	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

// ReadRunFile reads a run document, inferring the format from the path.
func ReadRunFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	format := FormatFromPath(path)
	if format == FormatBench {
		return nil, errors.Newf("%s is benchmark output; use ReadBenchFile", path)
	}
	run, err := DecodeRun(f, format)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return run, nil
}

// EncodeRun writes run in the given format.
func EncodeRun(w io.Writer, run *Run, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(run)
	default:
		return errors.Newf("unsupported run format %q", format)
	}
}

// Read loads a run from path. Benchmark output is filtered to benchmark;
// skipped holds the benchfmt syntax errors that were ignored.
func Read(path, benchmark string) (run *Run, skipped []error, err error) {
	if FormatFromPath(path) == FormatBench {
		return ReadBenchFile(path, benchmark)
	}
	run, err = ReadRunFile(path)
	return run, nil, err
}
