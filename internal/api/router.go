// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/norsu-alumni/logkeeper/internal/middleware"
)

// RouterConfig assembles the router.
type RouterConfig struct {
	// BasePath mounts the admin routes, "/logs" by default.
	BasePath string
	Auth     *middleware.Authenticator
	// Chi supplies CORS and rate limiting; nil uses the defaults.
	Chi *ChiMiddleware
}

// NewRouter builds the HTTP surface: health and metrics at the root, the
// staff-only admin routes under BasePath. Mutating routes are rate limited.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	chiMW := cfg.Chi
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	if chiMW.config.RateLimitOnLimit == nil {
		chiMW.config.RateLimitOnLimit = rateLimited
	}
	base := "/" + strings.Trim(cfg.BasePath, "/")
	if cfg.BasePath == "" {
		base = "/logs"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMW.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	admin := func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Middleware)
		}
		r.Use(middleware.AuditContext)

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.AuditList)
			r.Get("/export", h.AuditExport)
			r.Get("/{id}", h.AuditDetail)
		})
		r.Get("/file", h.FileList)
		r.Get("/file/", h.FileList)
		r.Get("/export", h.FileExport)
		r.Get("/settings", h.Settings)
		r.Get("/cleanup-plan", h.CleanupPlan)
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", h.OperationList)
			r.Get("/export", h.OperationExport)
			r.Get("/{id}", h.OperationDetail)
		})

		r.Group(func(r chi.Router) {
			r.Use(chiMW.RateLimit())
			r.Post("/manual-cleanup", h.ManualCleanup)
			r.Post("/save-retention-policy", h.SaveRetentionPolicy)
			r.Post("/save-cleanup-schedule", h.SaveCleanupSchedule)
			r.Post("/save-storage-config", h.SaveStorageConfig)
			r.Post("/recalculate-storage", h.RecalculateStorage)
			r.Post("/clear", h.ClearLog)
		})
	}
	if base == "/" {
		r.Group(admin)
	} else {
		r.Route(base, admin)
	}
	return r
}
