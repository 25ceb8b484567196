// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/metrics"
	"github.com/tomtom215/euphonia/internal/models"
	"github.com/tomtom215/euphonia/internal/recommend"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

// defaultK is the result count when a request leaves k unset.
const defaultK = 10

// profileRecentEntries bounds the conversation entries echoed back by
// the profile endpoint.
const profileRecentEntries = 10

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	engine    *recommend.Engine
	catalog   *catalog.Catalog
	index     vectorindex.Index
	mem       *memory.Manager
	startTime time.Time
	version   string
}

// NewHandler creates a handler wired to the recommendation core.
func NewHandler(engine *recommend.Engine, cat *catalog.Catalog, idx vectorindex.Index, mem *memory.Manager, version string) *Handler {
	return &Handler{
		engine:    engine,
		catalog:   cat,
		index:     idx,
		mem:       mem,
		startTime: time.Now(),
		version:   version,
	}
}

// RecommendRequest is the POST /api/v1/recommend body.
type RecommendRequest struct {
	UserID            string            `json:"user_id" validate:"required"`
	Query             []float32         `json:"query" validate:"required,min=1"`
	K                 int               `json:"k" validate:"gte=0,lte=100"`
	ContextTags       map[string]string `json:"context_tags"`
	Input             string            `json:"input"`
	Emotion           string            `json:"emotion"`
	EmotionConfidence float64           `json:"emotion_confidence" validate:"gte=0,lte=1"`
}

// Recommend handles POST /api/v1/recommend.
// Returns ranked recommendations plus the updated profile snapshot.
// Degraded and non-durable outcomes are flagged in response metadata
// rather than reported as errors.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RecommendRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	if req.K == 0 {
		req.K = defaultK
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.Request{
		UserID:            req.UserID,
		Query:             req.Query,
		ContextTags:       catalog.Filter(req.ContextTags),
		K:                 req.K,
		Input:             req.Input,
		Emotion:           req.Emotion,
		EmotionConfidence: req.EmotionConfidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, vectorindex.ErrDimensionMismatch):
			respondError(w, http.StatusBadRequest, "DIMENSION_MISMATCH", "Query dimension does not match the index", err)
		case errors.Is(err, recommend.ErrEmptyUserID), errors.Is(err, recommend.ErrInvalidK):
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		default:
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate recommendations", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Degraded:    resp.Degraded,
			NonDurable:  !resp.Durable,
		},
	})
}

// AddSongsRequest is the POST /api/v1/songs body.
type AddSongsRequest struct {
	Songs []catalog.Song `json:"songs" validate:"required,min=1,max=10000"`
}

// AddSongs handles POST /api/v1/songs.
// Ingests pre-vectorized songs into the catalog and the index as one
// unit. The whole batch is validated before anything is applied.
func (h *Handler) AddSongs(w http.ResponseWriter, r *http.Request) {
	var req AddSongsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.catalog.AddSongs(req.Songs); err != nil {
		switch {
		case errors.Is(err, catalog.ErrDimensionMismatch):
			respondError(w, http.StatusBadRequest, "DIMENSION_MISMATCH", "Song vector dimension does not match the catalog", err)
		case errors.Is(err, catalog.ErrEmptyID):
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Every song needs a non-empty ID", err)
		default:
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to ingest songs", err)
		}
		return
	}

	records := make([]vectorindex.Record, len(req.Songs))
	for i, s := range req.Songs {
		records[i] = vectorindex.Record{ID: s.ID, Vector: s.Vector}
	}
	if err := h.index.Add(r.Context(), records); err != nil {
		// Keep catalog and index consistent: back out the batch.
		for _, s := range req.Songs {
			h.catalog.Remove(s.ID)
		}
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to index songs", err)
		return
	}

	metrics.IndexSize.WithLabelValues(h.index.Backend()).Set(float64(h.index.Len()))

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ingested":   len(req.Songs),
			"index_size": h.index.Len(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// DeleteSong handles DELETE /api/v1/songs/{id}.
// Removes the song from both the index and the catalog. Idempotent.
func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Song ID is required", nil)
		return
	}

	if err := h.index.Remove(id); err != nil {
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to remove song from index", err)
		return
	}
	h.catalog.Remove(id)

	metrics.IndexSize.WithLabelValues(h.index.Backend()).Set(float64(h.index.Len()))

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"deleted":    id,
			"index_size": h.index.Len(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// GetProfile handles GET /api/v1/users/{id}/profile.
// Returns the decrypted profile snapshot and conversation history size.
// A user the store has never seen returns 404.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User ID is required", nil)
		return
	}

	unlock := h.mem.Lock(id)
	defer unlock()

	um := h.mem.Load(r.Context(), id)
	if um.Profile.Sessions == 0 && len(um.History) == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No memory for this user", nil)
		return
	}

	ec := um.EnrichedContext(profileRecentEntries)
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"profile":        ec.Profile,
			"recent":         ec.Recent,
			"history_length": len(um.History),
			"durable":        um.Durable,
		},
		Metadata: models.Metadata{
			Timestamp:  time.Now(),
			NonDurable: !um.Durable,
		},
	})
}

// DeleteMemory handles DELETE /api/v1/users/{id}/memory.
// Forgets the user: profile and conversation history are removed from
// the encrypted store. Idempotent.
func (h *Handler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User ID is required", nil)
		return
	}

	if err := h.mem.Delete(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrEmptyUserID) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "User ID is required", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to delete user memory", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"deleted": id,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// Health handles GET /healthz.
// The core has no external dependencies at request time, so liveness
// and readiness collapse into one check: the index must be serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK

	respondJSON(w, statusCode, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":        status,
			"version":       h.version,
			"index_backend": h.index.Backend(),
			"index_size":    h.index.Len(),
			"catalog_size":  h.catalog.Count(),
			"uptime":        time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
