// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter builds the full route tree.
//
// Trigger endpoints share one strict rate limit because each fires a real
// job against the circulation system or the webhook; management and health
// endpoints get a permissive per-IP limit.
func NewRouter(h *Handlers, apiToken string, rateLimit int, logger zerolog.Logger) http.Handler {
	if rateLimit <= 0 {
		rateLimit = 60
	}

	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
		r.Use(bearerAuth(apiToken))

		// Job triggers
		r.With(httprate.LimitByIP(6, time.Minute)).Post("/sync/run", h.TriggerSync)
		r.With(httprate.LimitByIP(6, time.Minute)).Post("/digest/run", h.TriggerDigest)

		// Book management
		r.Get("/books", h.ListBooks)
		r.Put("/books/{id}/status", h.SetReadStatus)
		r.Get("/books/{id}/notes", h.ListNotes)
		r.Post("/books/{id}/notes", h.CreateNote)

		// Note management
		r.Put("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
	})

	// Observability; no auth so probes and scrapers work unattended.
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
