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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perfgate/services/perfgate/compare"
)

const (
	baselineYAML = `key: render/frame
unit: ms
samples: [10, 10.1, 9.9, 10, 10.05]
auxiliary:
  allocs: [4, 4, 4, 4, 4]
`
	slowerYAML = `key: render/frame
unit: ms
samples: [12, 12.1, 11.9, 12, 12.05]
auxiliary:
  allocs: [5, 5, 5, 5, 5]
`
	benchText = `goos: linux
goarch: amd64
pkg: example.com/render
BenchmarkFrame-8   	     100	   2000000 ns/op	     512 B/op	       4 allocs/op
BenchmarkFrame-8   	     100	   2100000 ns/op	     512 B/op	       4 allocs/op
BenchmarkFrame-8   	     100	   1900000 ns/op	     640 B/op	       5 allocs/op
BenchmarkLoad-8    	      10	   5000000 ns/op
PASS
ok  	example.com/render	1.234s
`
)

type result struct {
	code   int
	stdout string
	stderr string
}

// cli runs perfgate with a file store under dir.
func cli(t *testing.T, dir string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--store-backend", "file", "--store", filepath.Join(dir, "baselines"), "--no-color"}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompare_Regression(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "compare", base, cur)

	assert.Equal(t, compare.ExitRegression, res.code, res.stderr)
	assert.Contains(t, res.stdout, "REGRESSION")
	assert.Contains(t, res.stdout, "allocs")
}

func TestCompare_NoChange(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)

	res := cli(t, dir, "compare", base, base)

	assert.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "NO CHANGE")
}

func TestCompare_Improvement(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "compare", cur, base)

	assert.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "IMPROVEMENT")
}

func TestCompare_MissingFile(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)

	res := cli(t, dir, "compare", base, filepath.Join(dir, "missing.yaml"))

	assert.Equal(t, compare.ExitError, res.code)
	assert.Contains(t, res.stderr, "error:")
	assert.Contains(t, res.stderr, "missing.yaml")
}

func TestCompare_UnitMismatch(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", strings.Replace(slowerYAML, "unit: ms", "unit: us", 1))

	res := cli(t, dir, "compare", base, cur)

	assert.Equal(t, compare.ExitError, res.code)
	assert.Contains(t, res.stderr, "unit")
}

func TestCompare_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "--format", "json", "compare", base, cur)
	require.Equal(t, compare.ExitRegression, res.code, res.stderr)

	var report struct {
		ExitCode int `json:"exit_code"`
		Outcomes []struct {
			Key string `json:"key"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, compare.ExitRegression, report.ExitCode)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "render/frame", report.Outcomes[0].Key)
}

func TestInvalidSignificanceLevel(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)

	res := cli(t, dir, "--alpha", "1.5", "compare", base, base)

	assert.Equal(t, compare.ExitError, res.code)
	assert.Contains(t, res.stderr, "error:")
}

func TestSaveThenCheck(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "baseline", "save", base)
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "render/frame")

	res = cli(t, dir, "check", cur)
	assert.Equal(t, compare.ExitRegression, res.code, res.stderr)
	assert.Contains(t, res.stdout, "REGRESSION")

	res = cli(t, dir, "check", base)
	assert.Equal(t, compare.ExitPass, res.code, res.stderr)
}

func TestCheck_MissingBaseline(t *testing.T) {
	dir := t.TempDir()
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "check", cur)
	assert.Equal(t, compare.ExitError, res.code)

	res = cli(t, dir, "check", "--require-baseline=false", cur)
	assert.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "no baseline found")

	res = cli(t, dir, "baseline", "list")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Equal(t, "render/frame\n", res.stdout)
}

func TestCheck_KeyOverride(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)

	res := cli(t, dir, "baseline", "save", "--key", "other", base)
	require.Equal(t, compare.ExitPass, res.code, res.stderr)

	res = cli(t, dir, "check", "--key", "other", base)
	assert.Equal(t, compare.ExitPass, res.code, res.stderr)

	res = cli(t, dir, "check", "--key", "other", base, base)
	assert.Equal(t, compare.ExitError, res.code)
}

func TestBaselineLifecycle(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)

	require.Equal(t, compare.ExitPass, cli(t, dir, "baseline", "save", base).code)

	res := cli(t, dir, "baseline", "show", "render/frame")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "render/frame")
	assert.Contains(t, res.stdout, "mean")
	assert.Contains(t, res.stdout, "allocs")

	res = cli(t, dir, "--format", "json", "baseline", "show", "render/frame")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	var rec struct {
		Key     string    `json:"key"`
		Samples []float64 `json:"samples"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rec))
	assert.Equal(t, "render/frame", rec.Key)
	assert.Len(t, rec.Samples, 5)

	res = cli(t, dir, "baseline", "delete", "render/frame")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)

	res = cli(t, dir, "baseline", "list")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = cli(t, dir, "baseline", "delete", "render/frame")
	assert.Equal(t, compare.ExitError, res.code)

	res = cli(t, dir, "baseline", "show", "render/frame")
	assert.Equal(t, compare.ExitError, res.code)
}

func TestBenchOutput(t *testing.T) {
	dir := t.TempDir()
	bench := writeFile(t, dir, "bench.txt", benchText)

	res := cli(t, dir, "check", "--require-baseline=false", bench)
	require.Equal(t, compare.ExitPass, res.code, res.stderr)

	res = cli(t, dir, "baseline", "list")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	keys := strings.Fields(res.stdout)
	require.Len(t, keys, 2)
	assert.True(t, strings.HasPrefix(keys[0], "Frame"), keys[0])
	assert.True(t, strings.HasPrefix(keys[1], "Load"), keys[1])

	res = cli(t, dir, "--benchmark", "Frame", "compare", bench, bench)
	assert.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "allocs/op")
}

func TestVersion(t *testing.T) {
	res := cli(t, t.TempDir(), "version")

	assert.Equal(t, compare.ExitPass, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "perfgate dev"), res.stdout)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfgate.yaml")

	res := cli(t, dir, "config", "init", path)
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	require.FileExists(t, path)

	res = cli(t, dir, "--config", path, "--alpha", "0.01", "config", "show")
	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stdout, "significance_level: 0.01")
}

func TestTraceFlag(t *testing.T) {
	dir := t.TempDir()
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)

	res := cli(t, dir, "--trace", "check", "--require-baseline=false", cur)

	require.Equal(t, compare.ExitPass, res.code, res.stderr)
	assert.Contains(t, res.stderr, "gate.Gate.Check")
}

func TestStdoutMetricExporter(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baselineYAML)
	cur := writeFile(t, dir, "cur.yaml", slowerYAML)
	cfg := writeFile(t, dir, "perfgate.yaml", "telemetry:\n  metric_exporter: stdout\n")

	require.Equal(t, compare.ExitPass, cli(t, dir, "baseline", "save", base).code)
	res := cli(t, dir, "--config", cfg, "check", cur)

	require.Equal(t, compare.ExitRegression, res.code, res.stderr)
	assert.Contains(t, res.stderr, "perfgate.comparisons")
}
