// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/euphonia/internal/config"
)

// Router wires handlers and middleware into the served http.Handler.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router from the server configuration.
func NewRouter(handler *Handler, cfg config.ServerConfig) *Router {
	mw := NewMiddleware(&MiddlewareConfig{
		CORSAllowedOrigins: cfg.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.RateLimitReqs,
		RateLimitWindow:    cfg.RateLimitWindow,
	})

	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(router.middleware.CORS()) // global so OPTIONS preflight is handled

	// Health and metrics stay outside the API rate limit so monitoring
	// keeps working while clients are throttled.
	r.Group(func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Get("/healthz", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Post("/recommend", router.handler.Recommend)

		r.Route("/songs", func(r chi.Router) {
			r.Post("/", router.handler.AddSongs)
			r.Delete("/{id}", router.handler.DeleteSong)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/profile", router.handler.GetProfile)
			r.Delete("/memory", router.handler.DeleteMemory)
		})
	})

	return r
}
