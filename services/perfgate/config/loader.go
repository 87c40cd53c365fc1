// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PERFGATE_"

var validate = validator.New()

// Load reads path, applies environment overrides and validates.
//
// An empty path skips the file. A path that does not exist is an error;
// use WriteDefault to create one.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML onto the defaults and validates. Environment
// variables are not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
			}
			return errors.Wrap(ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from PERFGATE_* variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	var errs []string
	setFloat := func(name string, dst *float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, EnvPrefix+name+"="+v)
				return
			}
			*dst = f
		}
	}
	setInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name+"="+v)
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name+"="+v)
				return
			}
			*dst = b
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, EnvPrefix+name+"="+v)
				return
			}
			*dst = d
		}
	}
	setString := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	setFloat("SIGNIFICANCE_LEVEL", &cfg.SignificanceLevel)
	setString("CRITICAL_VALUES", &cfg.CriticalValues)
	setBool("REQUIRE_BASELINE", &cfg.RequireBaseline)
	setBool("UPDATE_BASELINE_ON_PASS", &cfg.UpdateBaselineOnPass)
	setString("STORE_BACKEND", &cfg.Store.Backend)
	setString("STORE_PATH", &cfg.Store.Path)
	setBool("STORE_SYNC_WRITES", &cfg.Store.SyncWrites)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_DIR", &cfg.Log.Dir)
	setBool("LOG_JSON", &cfg.Log.JSON)
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setFloat("SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	setInt("SERVER_BURST", &cfg.Server.Burst)
	setDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setBool("TELEMETRY_PROMETHEUS", &cfg.Telemetry.Prometheus)
	setString("TELEMETRY_NAMESPACE", &cfg.Telemetry.Namespace)
	setString("TELEMETRY_METRIC_EXPORTER", &cfg.Telemetry.MetricExporter)
	setString("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	if len(errs) > 0 {
		return errors.Wrapf(ErrInvalidConfig, "malformed environment: %s", strings.Join(errs, ", "))
	}
	return nil
}

// WriteDefault writes Default() as YAML to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "encode default config")
	}
	return os.WriteFile(path, data, 0644)
}
