// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/config"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/models"
	"github.com/tomtom215/euphonia/internal/recommend"
	"github.com/tomtom215/euphonia/internal/securestore"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

// envelope mirrors models.APIResponse with raw Data for per-test decoding.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error,omitempty"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	cat, err := catalog.New(2)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	idx, err := vectorindex.NewFlat(2)
	if err != nil {
		t.Fatalf("vectorindex.NewFlat: %v", err)
	}
	store, err := securestore.NewFileStore(t.TempDir(), securestore.Options{
		Secret:     []byte("test master secret"),
		Iterations: 1000,
	})
	if err != nil {
		t.Fatalf("securestore.NewFileStore: %v", err)
	}
	mem, err := memory.NewManager(store, memory.Config{Dimension: 2})
	if err != nil {
		t.Fatalf("memory.NewManager: %v", err)
	}
	engine, err := recommend.NewEngine(cat, idx, mem, recommend.DefaultConfig())
	if err != nil {
		t.Fatalf("recommend.NewEngine: %v", err)
	}

	handler := NewHandler(engine, cat, idx, mem, "test")
	router := NewRouter(handler, config.ServerConfig{
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	})
	return router.Setup()
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func ingestTestSongs(t *testing.T, srv http.Handler) {
	t.Helper()

	rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/songs", map[string]interface{}{
		"songs": []catalog.Song{
			{ID: "song-a", Vector: []float32{1, 0}, Metadata: map[string]string{"genre": "jazz", "title": "A"}},
			{ID: "song-b", Vector: []float32{0, 1}, Metadata: map[string]string{"genre": "rock", "title": "B"}},
			{ID: "song-c", Vector: []float32{0.9, 0.1}, Metadata: map[string]string{"genre": "jazz", "title": "C"}},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.Status != "success" {
		t.Fatalf("ingest status field = %q", env.Status)
	}
}

func TestAddSongs(t *testing.T) {
	srv := newTestServer(t)

	t.Run("valid batch", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/songs", map[string]interface{}{
			"songs": []catalog.Song{
				{ID: "s1", Vector: []float32{1, 0}, Metadata: map[string]string{"genre": "jazz"}},
			},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var data struct {
			Ingested  int `json:"ingested"`
			IndexSize int `json:"index_size"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Ingested != 1 || data.IndexSize != 1 {
			t.Errorf("data = %+v, want ingested=1 index_size=1", data)
		}
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/songs", map[string]interface{}{
			"songs": []catalog.Song{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
		}
	})

	t.Run("dimension mismatch rejected atomically", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/songs", map[string]interface{}{
			"songs": []catalog.Song{
				{ID: "ok", Vector: []float32{1, 0}},
				{ID: "bad", Vector: []float32{1, 0, 0}},
			},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if env.Error == nil || env.Error.Code != "DIMENSION_MISMATCH" {
			t.Errorf("error = %+v, want DIMENSION_MISMATCH", env.Error)
		}

		// The valid record must not have slipped in.
		rec, _ = doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
			"user_id": "probe", "query": []float32{1, 0}, "k": 10,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("probe status = %d", rec.Code)
		}
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/songs", map[string]interface{}{
			"songs": []catalog.Song{{ID: "s2", Vector: []float32{1, 0}}},
			"typo":  true,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestRecommendEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ingestTestSongs(t, srv)

	t.Run("ranked results", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
			"user_id":            "alice",
			"query":              []float32{1, 0},
			"k":                  2,
			"input":              "something upbeat please",
			"emotion":            "joy",
			"emotion_confidence": 0.9,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if env.Metadata.Degraded || env.Metadata.NonDurable {
			t.Errorf("metadata = %+v, want neither degraded nor non-durable", env.Metadata)
		}

		var data recommend.Response
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if len(data.Results) != 2 {
			t.Fatalf("results = %d, want 2", len(data.Results))
		}
		if data.Results[0].SongID != "song-a" || data.Results[1].SongID != "song-c" {
			t.Errorf("order = [%s %s], want [song-a song-c]",
				data.Results[0].SongID, data.Results[1].SongID)
		}
		if data.ConversationID == "" {
			t.Error("ConversationID is empty")
		}
		if data.Profile.Sessions != 1 {
			t.Errorf("Profile.Sessions = %d, want 1", data.Profile.Sessions)
		}
		if data.Backend != vectorindex.BackendFlat {
			t.Errorf("Backend = %q, want %q", data.Backend, vectorindex.BackendFlat)
		}
	})

	t.Run("context tags filter", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
			"user_id":      "bob",
			"query":        []float32{1, 0},
			"k":            5,
			"context_tags": map[string]string{"genre": "rock"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var data recommend.Response
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if len(data.Results) != 1 || data.Results[0].SongID != "song-b" {
			t.Errorf("results = %+v, want only song-b", data.Results)
		}
	})

	t.Run("default k applied", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
			"user_id": "carol",
			"query":   []float32{1, 0},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var data recommend.Response
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		// Catalog holds 3 songs, fewer than the default of 10.
		if len(data.Results) != 3 {
			t.Errorf("results = %d, want 3", len(data.Results))
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name     string
			body     map[string]interface{}
			wantCode string
		}{
			{
				name:     "missing user id",
				body:     map[string]interface{}{"query": []float32{1, 0}},
				wantCode: "VALIDATION_ERROR",
			},
			{
				name:     "missing query",
				body:     map[string]interface{}{"user_id": "alice"},
				wantCode: "VALIDATION_ERROR",
			},
			{
				name:     "k too large",
				body:     map[string]interface{}{"user_id": "alice", "query": []float32{1, 0}, "k": 101},
				wantCode: "VALIDATION_ERROR",
			},
			{
				name:     "wrong dimension",
				body:     map[string]interface{}{"user_id": "alice", "query": []float32{1, 0, 0}, "k": 2},
				wantCode: "DIMENSION_MISMATCH",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec, env := doJSON(t, srv, http.MethodPost, "/api/v1/recommend", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
				}
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
				}
			})
		}
	})
}

func TestProfileLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ingestTestSongs(t, srv)

	t.Run("unknown user is 404", func(t *testing.T) {
		rec, env := doJSON(t, srv, http.MethodGet, "/api/v1/users/ghost/profile", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if env.Error == nil || env.Error.Code != "NOT_FOUND" {
			t.Errorf("error = %+v, want NOT_FOUND", env.Error)
		}
	})

	t.Run("profile appears after recommendation", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
			"user_id": "alice", "query": []float32{1, 0}, "k": 1, "emotion": "joy",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("recommend status = %d", rec.Code)
		}

		rec, env := doJSON(t, srv, http.MethodGet, "/api/v1/users/alice/profile", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("profile status = %d, body %s", rec.Code, rec.Body.String())
		}
		var data struct {
			Profile       memory.Profile             `json:"profile"`
			Recent        []memory.ConversationEntry `json:"recent"`
			HistoryLength int                        `json:"history_length"`
			Durable       bool                       `json:"durable"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Profile.Sessions != 1 {
			t.Errorf("Sessions = %d, want 1", data.Profile.Sessions)
		}
		if len(data.Recent) != 1 || data.Recent[0].Emotion != "joy" {
			t.Errorf("Recent = %+v, want one joy entry", data.Recent)
		}
		if data.HistoryLength != 1 {
			t.Errorf("HistoryLength = %d, want 1", data.HistoryLength)
		}
		if data.Profile.LastEmotion != "joy" {
			t.Errorf("LastEmotion = %q, want joy", data.Profile.LastEmotion)
		}
		if !data.Durable {
			t.Error("Durable = false, want true")
		}
	})

	t.Run("delete memory forgets the user", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodDelete, "/api/v1/users/alice/memory", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete status = %d", rec.Code)
		}

		rec, _ = doJSON(t, srv, http.MethodGet, "/api/v1/users/alice/profile", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("profile status after delete = %d, want 404", rec.Code)
		}

		// Idempotent.
		rec, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/users/alice/memory", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("second delete status = %d, want 200", rec.Code)
		}
	})
}

func TestDeleteSong(t *testing.T) {
	srv := newTestServer(t)
	ingestTestSongs(t, srv)

	rec, env := doJSON(t, srv, http.MethodDelete, "/api/v1/songs/song-b", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Deleted   string `json:"deleted"`
		IndexSize int    `json:"index_size"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Deleted != "song-b" || data.IndexSize != 2 {
		t.Errorf("data = %+v, want deleted=song-b index_size=2", data)
	}

	// song-b no longer recommendable.
	rec, env = doJSON(t, srv, http.MethodPost, "/api/v1/recommend", map[string]interface{}{
		"user_id": "alice", "query": []float32{0, 1}, "k": 5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recommend status = %d", rec.Code)
	}
	var resp recommend.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	for _, r := range resp.Results {
		if r.SongID == "song-b" {
			t.Error("deleted song still recommended")
		}
	}

	// Deleting again is idempotent.
	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/songs/song-b", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("second delete status = %d, want 200", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	ingestTestSongs(t, srv)

	rec, env := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Status       string `json:"status"`
		IndexBackend string `json:"index_backend"`
		IndexSize    int    `json:"index_size"`
		CatalogSize  int    `json:"catalog_size"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", data.Status)
	}
	if data.IndexBackend != vectorindex.BackendFlat {
		t.Errorf("IndexBackend = %q, want flat", data.IndexBackend)
	}
	if data.IndexSize != 3 || data.CatalogSize != 3 {
		t.Errorf("sizes = %d/%d, want 3/3", data.IndexSize, data.CatalogSize)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("go_goroutines")) {
		t.Error("metrics output missing standard Go collector series")
	}
}
