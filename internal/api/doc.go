// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package api provides the HTTP serving surface using Chi router.
//
// Routes:
//
//	POST   /api/v1/recommend           emotion-aware recommendation
//	POST   /api/v1/songs               catalog + index ingestion
//	DELETE /api/v1/songs/{id}          remove a song everywhere
//	GET    /api/v1/users/{id}/profile  decrypted profile snapshot
//	DELETE /api/v1/users/{id}/memory   forget a user
//	GET    /healthz                    liveness and readiness
//	GET    /metrics                    Prometheus exposition
//
// All responses use the models.APIResponse envelope. Request bodies are
// validated with go-playground/validator before touching the engine.
// Middleware: request-ID propagation into the zerolog context, real-IP
// extraction, panic recovery, CORS, per-IP rate limiting and Prometheus
// request metrics.
package api
