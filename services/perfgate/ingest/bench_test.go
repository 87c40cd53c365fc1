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
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchOutput = `goos: linux
goarch: amd64
pkg: example.com/render
BenchmarkFrame-8   	     100	   2000000 ns/op	     512 B/op	       4 allocs/op
BenchmarkFrame-8   	     100	   2100000 ns/op	     512 B/op	       4 allocs/op
BenchmarkFrame-8   	     100	   1900000 ns/op	     640 B/op	       5 allocs/op
BenchmarkLoad-8    	      10	   5000000 ns/op
PASS
ok  	example.com/render	1.234s
`

func TestDecodeBenchAll(t *testing.T) {
	runs, skipped, err := DecodeBenchAll(strings.NewReader(benchOutput), "bench.txt")
	require.NoError(t, err)
	assert.Empty(t, skipped)

	names := BenchNames(runs)
	require.Len(t, names, 2)
	assert.Equal(t, "Frame", trimProcs(names[0]))
	assert.Equal(t, "Load", trimProcs(names[1]))

	frame := runs[names[0]]
	assert.Equal(t, "ms", frame.Unit)
	require.Len(t, frame.Samples, 3)
	assert.InDelta(t, 2.0, frame.Samples[0], 1e-9)
	assert.InDelta(t, 2.1, frame.Samples[1], 1e-9)
	assert.InDelta(t, 1.9, frame.Samples[2], 1e-9)

	require.Contains(t, frame.Auxiliary, "allocs/op")
	assert.Equal(t, []float64{4, 4, 5}, frame.Auxiliary["allocs/op"])
	assert.Equal(t, "linux", frame.Configuration["goos"])
	assert.Equal(t, "example.com/render", frame.Configuration["pkg"])

	require.NoError(t, frame.Validate())
}

func TestDecodeBench_Select(t *testing.T) {
	for _, name := range []string{"Frame", "BenchmarkFrame"} {
		run, _, err := DecodeBench(strings.NewReader(benchOutput), "bench.txt", name)
		require.NoError(t, err, name)
		assert.Len(t, run.Samples, 3)
	}

	_, _, err := DecodeBench(strings.NewReader(benchOutput), "bench.txt", "Missing")
	assert.True(t, errors.Is(err, ErrInvalidRun))

	_, _, err = DecodeBench(strings.NewReader(benchOutput), "bench.txt", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRun))
}

func TestDecodeBench_SingleBenchmarkNeedsNoName(t *testing.T) {
	in := "BenchmarkOnly-4 10 1000000 ns/op\nBenchmarkOnly-4 10 1100000 ns/op\n"
	run, _, err := DecodeBench(strings.NewReader(in), "only.txt", "")
	require.NoError(t, err)
	assert.Len(t, run.Samples, 2)
	assert.InDelta(t, 1.0, run.Samples[0], 1e-9)
}

func TestDecodeBench_SkipsSyntaxErrors(t *testing.T) {
	in := "BenchmarkOnly-4 10 1000000 ns/op\nBenchmarkOnly-4 notanumber ns/op\n"
	run, skipped, err := DecodeBench(strings.NewReader(in), "only.txt", "")
	require.NoError(t, err)
	assert.Len(t, run.Samples, 1)
	assert.Len(t, skipped, 1)
}

func TestDecodeBenchAll_NoTimings(t *testing.T) {
	_, _, err := DecodeBenchAll(strings.NewReader("PASS\nok\n"), "empty.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRun))
}

func TestTrimProcs(t *testing.T) {
	assert.Equal(t, "Frame", trimProcs("Frame-8"))
	assert.Equal(t, "Frame/size=10", trimProcs("Frame/size=10-16"))
	assert.Equal(t, "Frame-x", trimProcs("Frame-x"))
	assert.Equal(t, "Frame-", trimProcs("Frame-"))
	assert.Equal(t, "Frame", trimProcs("Frame"))
}
