// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avasquez-dev/vigilis/internal/config"
	"github.com/avasquez-dev/vigilis/internal/middleware"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
)

// NewRouter assembles the HTTP surface. The /v1 group carries CORS and a
// per-caller request budget; the analyze endpoint additionally runs through
// the subsystem's own API limit class, so the decision service throttles
// itself the same way it throttles everyone else.
func NewRouter(cfg config.ServerConfig, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
		r.Use(httprate.LimitByIP(cfg.AdminRequestsPerMinute, time.Minute))

		r.With(middleware.Admission(h.Limiter, ratelimit.ClassAPI)).
			Post("/analyze", h.Analyze)

		r.Get("/usage", h.Usage)
		r.Post("/bans", h.CreateBan)
		r.Get("/bans/{identifier}", h.GetBan)
		r.Delete("/bans/{identifier}", h.DeleteBan)
		r.Post("/limits/reset", h.ResetLimits)
		r.Put("/signals/{type}", h.ConfigureSignal)
	})

	return r
}
