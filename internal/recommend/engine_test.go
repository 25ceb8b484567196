// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package recommend

import (
	"context"
	"errors"
	"math"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/securestore"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

func testSongs() []catalog.Song {
	return []catalog.Song{
		{ID: "song-a", Vector: []float32{1, 0}, Metadata: map[string]string{"genre": "jazz", "title": "Alpha"}},
		{ID: "song-b", Vector: []float32{0, 1}, Metadata: map[string]string{"genre": "rock", "title": "Beta"}},
		{ID: "song-c", Vector: []float32{0.9, 0.1}, Metadata: map[string]string{"genre": "jazz", "title": "Gamma"}},
	}
}

func newTestEngine(t *testing.T, idx vectorindex.Index, songs []catalog.Song, cfg Config) (*Engine, *memory.Manager) {
	t.Helper()
	cat, err := catalog.New(2)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if err := cat.AddSongs(songs); err != nil {
		t.Fatalf("AddSongs: %v", err)
	}
	records := make([]vectorindex.Record, 0, len(songs))
	for _, s := range songs {
		records = append(records, vectorindex.Record{ID: s.ID, Vector: s.Vector})
	}
	if err := idx.Add(context.Background(), records); err != nil {
		t.Fatalf("index Add: %v", err)
	}

	store, err := securestore.NewFileStore(t.TempDir(), securestore.Options{
		Secret:     []byte("test master secret"),
		Iterations: 1000,
	})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	mem, err := memory.NewManager(store, memory.Config{Dimension: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eng, err := NewEngine(cat, idx, mem, cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng, mem
}

func newFlat(t *testing.T) vectorindex.Index {
	t.Helper()
	idx, err := vectorindex.New(vectorindex.BackendFlat, 2)
	if err != nil {
		t.Fatalf("vectorindex.New: %v", err)
	}
	return idx
}

func TestRecommendRanking(t *testing.T) {
	eng, _ := newTestEngine(t, newFlat(t), testSongs(), DefaultConfig())

	resp, err := eng.Recommend(context.Background(), Request{
		UserID:  "alice",
		Query:   []float32{1, 0},
		K:       2,
		Input:   "something upbeat",
		Emotion: "joy",
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Degraded {
		t.Error("response should not be degraded")
	}
	if !resp.Durable {
		t.Error("response should be durable")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].SongID != "song-a" || resp.Results[1].SongID != "song-c" {
		t.Errorf("result order = [%s %s], want [song-a song-c]",
			resp.Results[0].SongID, resp.Results[1].SongID)
	}
	if got := resp.Results[0].Signals.Similarity; math.Abs(got-1.0) > 1e-6 {
		t.Errorf("song-a similarity = %v, want 1.0", got)
	}
	wantC := 0.9 / math.Sqrt(0.82)
	if got := resp.Results[1].Signals.Similarity; math.Abs(got-wantC) > 1e-6 {
		t.Errorf("song-c similarity = %v, want %v", got, wantC)
	}
	if resp.ConversationID == "" {
		t.Error("conversation id not assigned")
	}
	if resp.Profile.Sessions != 1 {
		t.Errorf("profile sessions = %d, want 1", resp.Profile.Sessions)
	}
	if resp.Profile.GenreAffinity["jazz"] != 2 {
		t.Errorf("jazz affinity = %d, want 2", resp.Profile.GenreAffinity["jazz"])
	}
	if len(resp.TopGenres) != 1 || resp.TopGenres[0] != "jazz" {
		t.Errorf("top genres = %v, want [jazz]", resp.TopGenres)
	}
	if resp.Backend != vectorindex.BackendFlat {
		t.Errorf("backend = %q, want %q", resp.Backend, vectorindex.BackendFlat)
	}
}

func TestRecommendValidation(t *testing.T) {
	eng, _ := newTestEngine(t, newFlat(t), testSongs(), DefaultConfig())
	ctx := context.Background()

	if _, err := eng.Recommend(ctx, Request{Query: []float32{1, 0}, K: 1}); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("empty user err = %v, want ErrEmptyUserID", err)
	}
	if _, err := eng.Recommend(ctx, Request{UserID: "u", Query: []float32{1, 0}}); !errors.Is(err, ErrInvalidK) {
		t.Errorf("zero k err = %v, want ErrInvalidK", err)
	}
	if _, err := eng.Recommend(ctx, Request{UserID: "u", Query: []float32{1}, K: 1}); !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Errorf("dimension err = %v, want ErrDimensionMismatch", err)
	}
}

func TestRecommendContextTagFilter(t *testing.T) {
	eng, _ := newTestEngine(t, newFlat(t), testSongs(), DefaultConfig())

	resp, err := eng.Recommend(context.Background(), Request{
		UserID:      "alice",
		Query:       []float32{1, 0},
		K:           3,
		ContextTags: catalog.Filter{"genre": "rock"},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].SongID != "song-b" {
		t.Errorf("filtered results = %+v, want only song-b", resp.Results)
	}
}

func TestRecommendAffinityReordersTies(t *testing.T) {
	songs := []catalog.Song{
		{ID: "a-jazz", Vector: []float32{1, 0}, Metadata: map[string]string{"genre": "jazz"}},
		{ID: "b-rock", Vector: []float32{1, 0}, Metadata: map[string]string{"genre": "rock"}},
	}
	eng, mem := newTestEngine(t, newFlat(t), songs, DefaultConfig())
	ctx := context.Background()

	// Seed a profile that strongly prefers rock.
	um := mem.Load(ctx, "alice")
	if err := um.Update([]float32{1, 0}, "joy", []string{"rock", "rock", "rock"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mem.Persist(ctx, um); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	resp, err := eng.Recommend(ctx, Request{UserID: "alice", Query: []float32{1, 0}, K: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// Both songs tie on similarity; affinity promotes rock over the
	// ascending-ID tiebreak.
	if resp.Results[0].SongID != "b-rock" {
		t.Errorf("top result = %s, want b-rock", resp.Results[0].SongID)
	}
	if resp.Results[0].Signals.Affinity <= resp.Results[1].Signals.Affinity {
		t.Error("rock result should carry the larger affinity boost")
	}
}

// unavailableIndex fails every search while delegating everything else.
type unavailableIndex struct {
	vectorindex.Index
}

func (u unavailableIndex) Search(context.Context, []float32, int, vectorindex.FilterFunc) ([]vectorindex.Result, error) {
	return nil, vectorindex.ErrIndexUnavailable
}

func TestRecommendDegradedPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Breaker.FailureThreshold = 2
	eng, mem := newTestEngine(t, unavailableIndex{newFlat(t)}, testSongs(), cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := eng.Recommend(ctx, Request{
			UserID:      "alice",
			Query:       []float32{1, 0},
			K:           2,
			ContextTags: catalog.Filter{"genre": "jazz"},
		})
		if err != nil {
			t.Fatalf("Recommend %d: %v", i, err)
		}
		if !resp.Degraded {
			t.Fatalf("call %d: response not flagged degraded", i)
		}
		// Metadata-only retrieval orders by ascending ID.
		if len(resp.Results) != 2 || resp.Results[0].SongID != "song-a" || resp.Results[1].SongID != "song-c" {
			t.Fatalf("call %d: degraded results = %+v", i, resp.Results)
		}
	}

	// Repeated failures open the breaker.
	if got := eng.breaker.State(); got != gobreaker.StateOpen {
		t.Errorf("breaker state = %v, want open", got)
	}
	// Degraded calls still record the interaction.
	um := mem.Load(ctx, "alice")
	if um.Profile.Sessions != 3 {
		t.Errorf("sessions = %d, want 3", um.Profile.Sessions)
	}
	if len(um.History) != 3 {
		t.Errorf("history = %d entries, want 3", len(um.History))
	}
}

func TestRecommendCancelledLeavesMemoryUntouched(t *testing.T) {
	eng, mem := newTestEngine(t, newFlat(t), testSongs(), DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Recommend(ctx, Request{UserID: "alice", Query: []float32{1, 0}, K: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Recommend err = %v, want context.Canceled", err)
	}

	um := mem.Load(context.Background(), "alice")
	if um.Profile.Sessions != 0 || len(um.History) != 0 {
		t.Error("cancelled call applied a memory update")
	}
}

// failPutStore accepts reads but rejects every write.
type failPutStore struct {
	securestore.Store
}

func (f failPutStore) Put(context.Context, string, []byte) error {
	return errors.New("disk failure")
}

func TestRecommendNonDurableOnPersistFailure(t *testing.T) {
	cat, err := catalog.New(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.AddSongs(testSongs()); err != nil {
		t.Fatal(err)
	}
	idx := newFlat(t)
	records := []vectorindex.Record{{ID: "song-a", Vector: []float32{1, 0}}}
	if err := idx.Add(context.Background(), records); err != nil {
		t.Fatal(err)
	}

	inner, err := securestore.NewFileStore(t.TempDir(), securestore.Options{
		Secret:     []byte("test master secret"),
		Iterations: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inner.Close() })
	mem, err := memory.NewManager(failPutStore{inner}, memory.Config{Dimension: 2})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := NewEngine(cat, idx, mem, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := eng.Recommend(context.Background(), Request{UserID: "alice", Query: []float32{1, 0}, K: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Durable {
		t.Error("persist failure should mark the response non-durable")
	}
	if len(resp.Results) != 1 || resp.Results[0].SongID != "song-a" {
		t.Errorf("results = %+v, want song-a", resp.Results)
	}
	if resp.Profile.Sessions != 1 {
		t.Errorf("in-memory profile sessions = %d, want 1", resp.Profile.Sessions)
	}
}

func TestNewEngineValidation(t *testing.T) {
	cat, err := catalog.New(3)
	if err != nil {
		t.Fatal(err)
	}
	idx := newFlat(t)

	if _, err := NewEngine(cat, idx, nil, DefaultConfig()); err == nil {
		t.Error("mismatched dimensions should be rejected")
	}

	cfg := DefaultConfig()
	cfg.Oversample = 0
	cat2, _ := catalog.New(2)
	if _, err := NewEngine(cat2, idx, nil, cfg); err == nil {
		t.Error("invalid config should be rejected")
	}
}
