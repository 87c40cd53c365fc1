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
	"io"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/perf/benchfmt"
)

// primaryUnit is the benchfmt unit used as the primary metric. The reader
// normalises ns/op to sec/op; both spellings are accepted.
const (
	primaryUnit    = "sec/op"
	primaryUnitRaw = "ns/op"
	runUnit        = "ms"
)

// DecodeBenchAll decodes `go test -bench` output into one run per benchmark.
//
// Description:
//
//	Every result line contributes one sample per unit. The time per
//	operation becomes the primary metric in milliseconds; every other
//	unit (B/op, allocs/op, custom metrics) becomes an auxiliary metric
//	named by its unit. File configuration lines (goos, pkg, cpu...) in
//	effect for a benchmark are recorded in its Configuration. Lines that
//	benchfmt cannot parse are skipped and returned in skipped.
//
// Inputs:
//   - r: The benchmark output.
//   - name: File name used in syntax error positions.
//
// Outputs:
//   - map[string]*Run: Runs keyed by full benchmark name.
//   - []error: Skipped syntax errors.
//   - error: Read failure, or ErrInvalidRun if no benchmark had a time metric.
func DecodeBenchAll(r io.Reader, name string) (runs map[string]*Run, skipped []error, err error) {
	reader := benchfmt.NewReader(r, name)
	runs = make(map[string]*Run)

	for reader.Scan() {
		switch rec := reader.Result().(type) {
		case *benchfmt.SyntaxError:
			skipped = append(skipped, rec)
		case *benchfmt.Result:
			addResult(runs, rec)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, skipped, errors.Wrapf(err, "read benchmarks from %s", name)
	}

	for key, run := range runs {
		if len(run.Samples) == 0 {
			delete(runs, key)
		}
	}
	if len(runs) == 0 {
		return nil, skipped, errors.Wrapf(ErrInvalidRun, "%s: no benchmark reported %s", name, primaryUnitRaw)
	}
	return runs, skipped, nil
}

func addResult(runs map[string]*Run, res *benchfmt.Result) {
	key := strings.TrimPrefix(string(res.Name.Full()), "Benchmark")
	run, ok := runs[key]
	if !ok {
		run = &Run{Key: key, Unit: runUnit}
		runs[key] = run
	}
	for _, cfg := range res.Config {
		if !cfg.File {
			continue
		}
		if run.Configuration == nil {
			run.Configuration = make(map[string]string)
		}
		run.Configuration[cfg.Key] = string(cfg.Value)
	}
	for _, v := range res.Values {
		switch v.Unit {
		case primaryUnit:
			run.Samples = append(run.Samples, v.Value*1e3)
		case primaryUnitRaw:
			run.Samples = append(run.Samples, v.Value/1e6)
		default:
			if run.Auxiliary == nil {
				run.Auxiliary = make(map[string][]float64)
			}
			run.Auxiliary[v.Unit] = append(run.Auxiliary[v.Unit], v.Value)
		}
	}
}

// DecodeBench decodes benchmark output and selects one benchmark.
//
// benchmark may be given with or without the "Benchmark" prefix. When it
// is empty the output must contain exactly one benchmark.
func DecodeBench(r io.Reader, name, benchmark string) (*Run, []error, error) {
	runs, skipped, err := DecodeBenchAll(r, name)
	if err != nil {
		return nil, skipped, err
	}

	want := strings.TrimPrefix(benchmark, "Benchmark")
	if want == "" {
		if len(runs) != 1 {
			return nil, skipped, errors.Wrapf(ErrInvalidRun,
				"%s contains %d benchmarks (%s); select one", name, len(runs), strings.Join(BenchNames(runs), ", "))
		}
		for _, run := range runs {
			return run, skipped, nil
		}
	}
	if run, ok := runs[want]; ok {
		return run, skipped, nil
	}
	// Fall back to matching without the -GOMAXPROCS suffix.
	var match *Run
	for key, run := range runs {
		if trimProcs(key) != want {
			continue
		}
		if match != nil {
			return nil, skipped, errors.Wrapf(ErrInvalidRun, "benchmark %q is ambiguous in %s", benchmark, name)
		}
		match = run
	}
	if match != nil {
		return match, skipped, nil
	}
	return nil, skipped, errors.Wrapf(ErrInvalidRun, "benchmark %q not found in %s", benchmark, name)
}

// trimProcs removes a trailing "-N" GOMAXPROCS suffix.
func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i < 0 || i == len(name)-1 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}

// ReadBenchFile reads benchmark output from path.
func ReadBenchFile(path, benchmark string) (*Run, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return DecodeBench(f, path, benchmark)
}

// BenchNames returns the sorted keys of runs.
func BenchNames(runs map[string]*Run) []string {
	names := make([]string, 0, len(runs))
	for k := range runs {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
