// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

const yamlRun = `key: render/frame
unit: ms
configuration:
  gpu: a100
samples: [10, 10.1, 9.9]
auxiliary:
  gpu_utilization: [71, 72]
`

func TestDecodeRun_YAML(t *testing.T) {
	run, err := DecodeRun(strings.NewReader(yamlRun), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "render/frame", run.Key)
	assert.Equal(t, "ms", run.Unit)
	assert.Equal(t, map[string]string{"gpu": "a100"}, run.Configuration)
	assert.Equal(t, []float64{10, 10.1, 9.9}, run.Samples)
	assert.Equal(t, []float64{71, 72}, run.Auxiliary["gpu_utilization"])
}

func TestDecodeRun_JSON(t *testing.T) {
	doc := `{"key":"k","samples":[1,2,3]}`
	run, err := DecodeRun(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "k", run.Key)
	assert.Len(t, run.Samples, 3)
}

func TestDecodeRun_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
	}{
		{"missing key", `{"samples":[1]}`, FormatJSON},
		{"reserved key", `{"key":"..","samples":[1]}`, FormatJSON},
		{"blank key", "key: \"  \"\nsamples: [1]\n", FormatYAML},
		{"no samples", `{"key":"k","samples":[]}`, FormatJSON},
		{"unknown field", `{"key":"k","samples":[1],"extra":1}`, FormatJSON},
		{"malformed json", `{"key":`, FormatJSON},
		{"unknown yaml field", "key: k\nsamples: [1]\nbogus: 2\n", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRun(strings.NewReader(tt.doc), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRun), "got %v", err)
		})
	}
}

func TestDecodeRun_EmptySamplesKeepsSentinel(t *testing.T) {
	_, err := DecodeRun(strings.NewReader(`{"key":"k","samples":[]}`), FormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, stats.ErrEmptySampleSet))
}

func TestDecodeRun_UnsupportedFormat(t *testing.T) {
	_, err := DecodeRun(strings.NewReader(`{}`), Format("toml"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("run.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("run.yaml"))
	assert.Equal(t, FormatYAML, FormatFromPath("run.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("run"))
	assert.Equal(t, FormatBench, FormatFromPath("bench.txt"))
	assert.Equal(t, FormatBench, FormatFromPath("new.bench"))
}

func TestReadRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlRun), 0o644))

	run, err := ReadRunFile(path)
	require.NoError(t, err)
	assert.Equal(t, "render/frame", run.Key)

	_, err = ReadRunFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bench := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(bench, []byte(benchOutput), 0o644))
	_, err = ReadRunFile(bench)
	assert.Error(t, err)
}

func TestRead_Dispatch(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"key":"k","samples":[1,2]}`), 0o644))
	bench := filepath.Join(dir, "out.bench")
	require.NoError(t, os.WriteFile(bench, []byte(benchOutput), 0o644))

	run, skipped, err := Read(doc, "")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, "k", run.Key)

	run, _, err = Read(bench, "Load")
	require.NoError(t, err)
	assert.Len(t, run.Samples, 1)
}

func TestEncodeRun_RoundTrip(t *testing.T) {
	in, err := DecodeRun(strings.NewReader(yamlRun), FormatYAML)
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, EncodeRun(&buf, in, format))
		out, err := DecodeRun(&buf, format)
		require.NoError(t, err, format)
		assert.Equal(t, in, out, format)
	}
	assert.Error(t, EncodeRun(&bytes.Buffer{}, in, FormatBench))
}

func TestRecordConversion(t *testing.T) {
	run := &Run{
		Key:           "k",
		Unit:          "ms",
		Configuration: map[string]string{"os": "linux"},
		Samples:       []float64{1, 2},
		Auxiliary:     map[string][]float64{"mem": {3}},
		Metadata:      map[string]string{"commit": "abc"},
	}

	rec := run.ToRecord()
	require.NoError(t, rec.Validate())
	assert.Equal(t, run.Samples, rec.Samples)

	// the record is a copy
	rec.Samples[0] = 99
	rec.Auxiliary["mem"][0] = 99
	assert.Equal(t, 1.0, run.Samples[0])
	assert.Equal(t, 3.0, run.Auxiliary["mem"][0])

	back := RunFromRecord(run.ToRecord())
	assert.Equal(t, run, back)
	assert.Nil(t, RunFromRecord((*baseline.Record)(nil)))
}

func TestPairAuxiliary(t *testing.T) {
	assert.Nil(t, PairAuxiliary(nil, nil))

	pairs := PairAuxiliary(
		map[string][]float64{"gpu": {70}, "mem": {1}},
		map[string][]float64{"gpu": {75}, "disk": {2}},
	)
	require.Len(t, pairs, 3)
	assert.Equal(t, []float64{70}, pairs["gpu"].Baseline)
	assert.Equal(t, []float64{75}, pairs["gpu"].Current)
	assert.Empty(t, pairs["mem"].Current)
	assert.Empty(t, pairs["disk"].Baseline)
}
