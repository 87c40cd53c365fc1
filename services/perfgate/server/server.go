// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the regression gate over HTTP.
//
//	POST /v1/compare            two sample sets → comparison and verdict
//	POST /v1/check              run → gate decision against the stored baseline
//	GET  /v1/baselines          list baseline keys
//	GET  /v1/baselines/:key     load a baseline
//	PUT  /v1/baselines/:key     store a baseline
//	DELETE /v1/baselines/:key   delete a baseline
//	GET  /health                liveness
//	GET  /metrics               Prometheus metrics
//
// Keys containing "/" must be sent percent-encoded (render%2Fframe).
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address (e.g., ":8089").
	Addr string

	// RateLimit is the sustained requests per second on /v1. Zero disables
	// rate limiting.
	RateLimit float64

	// Burst is the token bucket size.
	Burst int

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration

	// ServiceName names the otelgin spans.
	// Default: "perfgate"
	ServiceName string

	// Version is reported by /health.
	Version string
}

// Deps are the collaborators of the server.
type Deps struct {
	// Store holds baselines. Required.
	Store baseline.Store

	// Gate serves /v1/check. Required.
	Gate *gate.Gate

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Critical is the default critical value source of /v1/compare.
	Critical stats.CriticalValues

	// SignificanceLevel is the default alpha of /v1/compare.
	SignificanceLevel float64

	// Logger for request and lifecycle logs.
	Logger *slog.Logger
}

// Server is the perfgate HTTP service.
//
// Thread Safety: Safe for concurrent use after New.
type Server struct {
	config Config
	router *gin.Engine
	logger *slog.Logger
}

// New builds the router and registers all routes.
func New(config Config, deps Deps) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.ServiceName == "" {
		config.ServiceName = "perfgate"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Critical == nil {
		deps.Critical = stats.TableCriticalValues{}
	}
	if deps.SignificanceLevel == 0 {
		deps.SignificanceLevel = stats.DefaultSignificanceLevel
	}

	router := gin.New()
	// Route on the escaped path so that %2F stays inside a :key segment.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(RequestLogger(deps.Logger))

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	h := &Handlers{
		store:    deps.Store,
		gate:     deps.Gate,
		critical: deps.Critical,
		alpha:    deps.SignificanceLevel,
		logger:   deps.Logger,
		version:  config.Version,
	}
	SetupRoutes(router, h, deps.Gatherer, limiter)

	return &Server{
		config: config,
		router: router,
		logger: deps.Logger,
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on config.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.config.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("perfgate server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("perfgate server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}
