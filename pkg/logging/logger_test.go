// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" warn ", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	_, err := ParseLevel("trace")
	if err == nil || err.Error() != `unknown log level "trace"` {
		t.Errorf("ParseLevel(trace) error = %v", err)
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_Output(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Output: &buf, Service: "perfgate"})
		logger.Info("gate check completed", "key", "render/frame")

		out := buf.String()
		if !strings.Contains(out, "gate check completed") {
			t.Errorf("missing message in %q", out)
		}
		if !strings.Contains(out, "service=perfgate") {
			t.Errorf("missing service attribute in %q", out)
		}
		if !strings.Contains(out, "key=render/frame") {
			t.Errorf("missing key attribute in %q", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Output: &buf, JSON: true})
		logger.Warn("baseline update failed")

		if !strings.Contains(buf.String(), `"level":"WARN"`) {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Output: &buf, Quiet: true})
		logger.Error("dropped")
		if buf.Len() != 0 {
			t.Errorf("quiet logger wrote %q", buf.String())
		}
	})
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelWarn})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	for _, dropped := range []string{"debug message", "info message"} {
		if strings.Contains(out, dropped) {
			t.Errorf("%q should be filtered", dropped)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(out, kept) {
			t.Errorf("%q should be logged", kept)
		}
	}
}

func TestLogger_WithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := New(Config{LogDir: dir, Service: "perfgate-test", Quiet: true})
	logger.Info("written to file", "verdict", "regression")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "perfgate-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"verdict":"regression"`) {
		t.Errorf("log file missing entry: %s", data)
	}

	// second Close is a no-op
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLogger_WithLogDir_InvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(file, "logs"), Output: &buf})
	logger.Info("still logged")
	if !strings.Contains(buf.String(), "still logged") {
		t.Error("console output should survive a bad log dir")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	child := logger.With("request_id", "abc123")
	child.Info("handled")

	if !strings.Contains(buf.String(), "request_id=abc123") {
		t.Errorf("child attributes missing: %q", buf.String())
	}
	if child.Slog() == logger.Slog() {
		t.Error("child should have its own slog.Logger")
	}
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	logger := New(Config{Quiet: true, Recorder: rec, Service: "perfgate", Level: LevelInfo})

	logger.Debug("filtered")
	logger.Slog().With("key", "frame").WithGroup("welch").Info("compared", "df", 18)
	logger.Error("failed", "error", "boom")

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), rec.Messages())
	}

	first := entries[0]
	if first.Message != "compared" || first.Level != LevelInfo {
		t.Errorf("unexpected first entry %+v", first)
	}
	if first.Attrs["service"] != "perfgate" || first.Attrs["key"] != "frame" {
		t.Errorf("missing inherited attributes: %v", first.Attrs)
	}
	if first.Attrs["welch.df"] != int64(18) {
		t.Errorf("expected grouped attribute welch.df=18, got %v", first.Attrs)
	}
	if entries[1].Level != LevelError {
		t.Errorf("expected error level, got %v", entries[1].Level)
	}
}

func TestRecorder_WithConsole(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder()
	logger := New(Config{Output: &buf, Recorder: rec})
	logger.Info("both")

	if !strings.Contains(buf.String(), "both") {
		t.Error("console output missing")
	}
	if got := rec.Messages(); len(got) != 1 || got[0] != "both" {
		t.Errorf("recorder messages = %v", got)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	rec := NewRecorder()
	logger := New(Config{Quiet: true, Recorder: rec})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Info("concurrent", "i", i)
		}(i)
	}
	wg.Wait()

	if n := len(rec.Entries()); n != 50 {
		t.Errorf("expected 50 entries, got %d", n)
	}
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	ctx := context.Background()
	if !h.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected Info enabled")
	}
	if h.Enabled(ctx, slog.LevelDebug) {
		t.Error("expected Debug disabled")
	}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("k", "v")}))
	logger.Info("info only")
	logger.Error("both")

	if !strings.Contains(a.String(), "info only") || !strings.Contains(a.String(), "k=v") {
		t.Errorf("first handler output %q", a.String())
	}
	if strings.Contains(b.String(), "info only") || !strings.Contains(b.String(), "both") {
		t.Errorf("second handler output %q", b.String())
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
