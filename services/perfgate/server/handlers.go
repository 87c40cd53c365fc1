// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/perfgate/pkg/validation"
	"github.com/AleutianAI/perfgate/services/perfgate/baseline"
	"github.com/AleutianAI/perfgate/services/perfgate/compare"
	"github.com/AleutianAI/perfgate/services/perfgate/gate"
	"github.com/AleutianAI/perfgate/services/perfgate/ingest"
	"github.com/AleutianAI/perfgate/services/perfgate/stats"
)

// -----------------------------------------------------------------------------
// Request and Response Types
// -----------------------------------------------------------------------------

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CompareRequest is the body of POST /v1/compare.
type CompareRequest struct {
	Baseline []float64 `json:"baseline" binding:"required,min=1"`
	Current  []float64 `json:"current" binding:"required,min=1"`

	// SignificanceLevel overrides the server default. Must lie in (0, 1).
	SignificanceLevel *float64 `json:"significance_level" binding:"omitempty,gt=0,lt=1"`

	// CriticalValues is "table" or "exact". Empty uses the server default.
	CriticalValues string `json:"critical_values" binding:"omitempty,oneof=table exact"`

	Auxiliary map[string]compare.MetricSamples `json:"auxiliary"`
}

// CompareResponse is the body of a successful POST /v1/compare.
type CompareResponse struct {
	Verdict  compare.Verdict `json:"verdict"`
	ExitCode int             `json:"exit_code"`
	Result   *compare.Result `json:"result"`
}

// CheckResponse is the body of a successful POST /v1/check.
type CheckResponse struct {
	ExitCode int            `json:"exit_code"`
	Decision *gate.Decision `json:"decision"`
	Rows     []gate.Row     `json:"rows,omitempty"`
}

// BaselineList is the body of GET /v1/baselines.
type BaselineList struct {
	Keys []string `json:"keys"`
}

// BaselineRequest is the body of PUT /v1/baselines/:key.
type BaselineRequest struct {
	Unit          string               `json:"unit"`
	Configuration map[string]string    `json:"configuration"`
	Samples       []float64            `json:"samples" binding:"required,min=1"`
	Auxiliary     map[string][]float64 `json:"auxiliary"`
	Metadata      map[string]string    `json:"metadata"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// Handlers serves the perfgate API.
type Handlers struct {
	store    baseline.Store
	gate     *gate.Gate
	critical stats.CriticalValues
	alpha    float64
	logger   *slog.Logger
	version  string
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Compare compares two sample sets without touching the store.
func (h *Handlers) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	alpha := h.alpha
	if req.SignificanceLevel != nil {
		alpha = *req.SignificanceLevel
	}
	critical := h.critical
	if req.CriticalValues != "" {
		mode, err := stats.ParseCriticalMode(req.CriticalValues)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		critical = mode.Source()
	}

	result, err := compare.Compare(req.Baseline, req.Current,
		compare.WithSignificanceLevel(alpha),
		compare.WithCriticalValues(critical),
		compare.WithAuxiliaryMetrics(req.Auxiliary),
	)
	if err != nil {
		h.writeError(c, err)
		return
	}

	verdict := result.Verdict()
	c.JSON(http.StatusOK, CompareResponse{
		Verdict:  verdict,
		ExitCode: verdict.ExitCode(),
		Result:   result,
	})
}

// Check runs the gate for one run.
func (h *Handlers) Check(c *gin.Context) {
	var run ingest.Run
	if err := c.ShouldBindJSON(&run); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	d, err := h.gate.Check(c.Request.Context(), &run)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckResponse{
		ExitCode: d.ExitCode(),
		Decision: d,
		Rows:     gate.Rows(d),
	})
}

// ListBaselines lists the stored keys.
func (h *Handlers) ListBaselines(c *gin.Context) {
	keys, err := h.store.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, BaselineList{Keys: keys})
}

// GetBaseline loads one baseline.
func (h *Handlers) GetBaseline(c *gin.Context) {
	rec, err := h.store.Load(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// PutBaseline stores a baseline under the path key.
func (h *Handlers) PutBaseline(c *gin.Context) {
	var req BaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	key := c.Param("key")
	rec := &baseline.Record{
		Key:           key,
		Unit:          req.Unit,
		Configuration: req.Configuration,
		Samples:       req.Samples,
		Auxiliary:     req.Auxiliary,
		Metadata:      req.Metadata,
	}
	ctx := c.Request.Context()
	if err := h.store.Save(ctx, key, rec); err != nil {
		h.writeError(c, err)
		return
	}
	stored, err := h.store.Load(ctx, key)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("baseline stored", slog.String("key", key), slog.Int("samples", len(stored.Samples)))
	c.JSON(http.StatusOK, stored)
}

// DeleteBaseline removes a baseline.
func (h *Handlers) DeleteBaseline(c *gin.Context) {
	key := c.Param("key")
	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("baseline deleted", slog.String("key", key))
	c.Status(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, baseline.ErrBaselineNotFound):
		return http.StatusNotFound
	case errors.Is(err, gate.ErrUnitMismatch):
		return http.StatusConflict
	case errors.Is(err, stats.ErrInvalidSignificance),
		errors.Is(err, stats.ErrInvalidConfidence),
		errors.Is(err, stats.ErrEmptySampleSet),
		errors.Is(err, stats.ErrNonFiniteSample),
		errors.Is(err, stats.ErrNumericOverflow),
		errors.Is(err, ingest.ErrInvalidRun),
		errors.Is(err, validation.ErrInvalidKey),
		errors.Is(err, baseline.ErrInvalidBaseline):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
