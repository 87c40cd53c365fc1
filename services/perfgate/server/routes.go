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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRoutes registers the perfgate routes. A nil limiter disables rate
// limiting.
func SetupRoutes(router *gin.Engine, h *Handlers, gatherer prometheus.Gatherer, limiter *rate.Limiter) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	if limiter != nil {
		v1.Use(RateLimit(limiter))
	}
	{
		v1.POST("/compare", h.Compare)
		v1.POST("/check", h.Check)

		baselines := v1.Group("/baselines")
		{
			baselines.GET("", h.ListBaselines)
			baselines.GET("/:key", h.GetBaseline)
			baselines.PUT("/:key", h.PutBaseline)
			baselines.DELETE("/:key", h.DeleteBaseline)
		}
	}
}
