// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads perfgate configuration from YAML with environment
// overrides.
//
// Precedence, lowest first: Default(), the YAML file, PERFGATE_* variables.
// Fields absent from the file keep their defaults.
package config

import (
	"time"

	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Config is the root perfgate configuration.
type Config struct {
	// SignificanceLevel is alpha for the Welch test.
	SignificanceLevel float64 `yaml:"significance_level" json:"significance_level" validate:"gt=0,lt=1"`

	// CriticalValues selects "table" or "exact" critical values.
	CriticalValues string `yaml:"critical_values" json:"critical_values" validate:"oneof=table exact"`

	// RequireBaseline makes a missing baseline an error (exit 2). When false
	// the first run seeds the baseline and passes.
	RequireBaseline bool `yaml:"require_baseline" json:"require_baseline"`

	// UpdateBaselineOnPass replaces the baseline after a passing check.
	UpdateBaselineOnPass bool `yaml:"update_baseline_on_pass" json:"update_baseline_on_pass"`

	Store     Store     `yaml:"store" json:"store"`
	Log       Log       `yaml:"log" json:"log"`
	Server    Server    `yaml:"server" json:"server"`
	Telemetry Telemetry `yaml:"telemetry" json:"telemetry"`
}

// Store configures the baseline store.
type Store struct {
	Backend string `yaml:"backend" json:"backend" validate:"oneof=memory file badger"`

	// Path is the directory for the file and badger backends.
	Path string `yaml:"path" json:"path" validate:"required_unless=Backend memory"`

	// SyncWrites enables synchronous badger writes.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// Log configures pkg/logging.
type Log struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir" json:"dir"`
	JSON  bool   `yaml:"json" json:"json"`
}

// Server configures the HTTP service.
type Server struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`

	// RateLimit is the sustained request rate per second. 0 disables it.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// Burst is the token bucket size.
	Burst int `yaml:"burst" json:"burst" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gte=0"`
}

// Telemetry configures metrics and tracing.
type Telemetry struct {
	// Prometheus enables the /metrics endpoint and comparison metrics.
	Prometheus bool `yaml:"prometheus" json:"prometheus"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" json:"namespace" validate:"required_if=Prometheus true"`

	// MetricExporter enables OpenTelemetry comparison metrics through
	// "prometheus" or "stdout". Empty disables them.
	MetricExporter string `yaml:"metric_exporter" json:"metric_exporter" validate:"omitempty,oneof=prometheus stdout"`

	// OTLPEndpoint is the gRPC collector address. Empty disables OTLP.
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`

	ServiceName string `yaml:"service_name" json:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SignificanceLevel: stats.DefaultSignificanceLevel,
		CriticalValues:    string(stats.CriticalTable),
		RequireBaseline:   true,
		Store: Store{
			Backend:    BackendFile,
			Path:       ".perfgate/baselines",
			SyncWrites: true,
		},
		Log: Log{
			Level: "info",
		},
		Server: Server{
			Addr:            ":8089",
			RateLimit:       50,
			Burst:           100,
			ShutdownTimeout: 10 * time.Second,
		},
		Telemetry: Telemetry{
			Prometheus:  true,
			Namespace:   "perfgate",
			ServiceName: "perfgate",
		},
	}
}

// CriticalSource returns the configured critical value implementation.
func (c Config) CriticalSource() stats.CriticalValues {
	mode, err := stats.ParseCriticalMode(c.CriticalValues)
	if err != nil {
		return stats.TableCriticalValues{}
	}
	return mode.Source()
}
