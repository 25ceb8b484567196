// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// backends lists every Index implementation; the conformance suite runs
// each subtest against all of them.
func backends(t *testing.T, dimension int) map[string]Index {
	t.Helper()

	flat, err := NewFlat(dimension)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	graph, err := NewGraph(dimension)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return map[string]Index{
		BackendFlat:  flat,
		BackendGraph: graph,
	}
}

func TestIndex_ScenarioTwoDimensional(t *testing.T) {
	// A=[1,0], B=[0,1], C=[0.9,0.1]; query=[1,0], k=2 -> [A, C]
	records := []Record{
		{ID: "A", Vector: []float32{1, 0}},
		{ID: "B", Vector: []float32{0, 1}},
		{ID: "C", Vector: []float32{0.9, 0.1}},
	}

	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Add(context.Background(), records); err != nil {
				t.Fatalf("Add: %v", err)
			}

			results, err := idx.Search(context.Background(), []float32{1, 0}, 2, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 2 {
				t.Fatalf("got %d results, want 2", len(results))
			}
			if results[0].ID != "A" || results[1].ID != "C" {
				t.Errorf("order = [%s, %s], want [A, C]", results[0].ID, results[1].ID)
			}
			if results[0].Similarity != 1.0 {
				t.Errorf("similarity(A) = %v, want 1.0", results[0].Similarity)
			}
			if results[1].Similarity < 0.99 || results[1].Similarity >= 1.0 {
				t.Errorf("similarity(C) = %v, want ~0.994", results[1].Similarity)
			}
			if results[0].Metric != MetricCosine {
				t.Errorf("metric = %q, want %q", results[0].Metric, MetricCosine)
			}
		})
	}
}

func TestIndex_OrderingAndKBound(t *testing.T) {
	records := benchmarkRecords(100, 8, 1)
	query := benchmarkRecords(1, 8, 99)[0].Vector

	for name, idx := range backends(t, 8) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Add(context.Background(), records); err != nil {
				t.Fatalf("Add: %v", err)
			}

			for _, k := range []int{1, 5, 10, 200} {
				results, err := idx.Search(context.Background(), query, k, nil)
				if err != nil {
					t.Fatalf("Search k=%d: %v", k, err)
				}
				if len(results) > k {
					t.Errorf("k=%d returned %d results", k, len(results))
				}
				for i := 1; i < len(results); i++ {
					if results[i].Similarity > results[i-1].Similarity {
						t.Errorf("k=%d: similarity increased at position %d", k, i)
					}
					if results[i].Similarity == results[i-1].Similarity &&
						results[i].ID < results[i-1].ID {
						t.Errorf("k=%d: tie not broken by ascending ID at %d", k, i)
					}
				}
				for _, r := range results {
					if r.Similarity < 0 || r.Similarity > 1 {
						t.Errorf("similarity %v outside [0,1]", r.Similarity)
					}
				}
			}
		})
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	for name, idx := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			err := idx.Add(context.Background(), []Record{{ID: "x", Vector: []float32{1, 2}}})
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Add wrong dim: got %v, want ErrDimensionMismatch", err)
			}

			_, err = idx.Search(context.Background(), []float32{1, 2}, 3, nil)
			if !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Search wrong dim: got %v, want ErrDimensionMismatch", err)
			}
		})
	}
}

func TestIndex_BatchAtomicity(t *testing.T) {
	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			batch := []Record{
				{ID: "good", Vector: []float32{1, 0}},
				{ID: "bad", Vector: []float32{1, 0, 0}},
			}
			if err := idx.Add(context.Background(), batch); !errors.Is(err, ErrDimensionMismatch) {
				t.Fatalf("Expected ErrDimensionMismatch, got %v", err)
			}
			if idx.Len() != 0 {
				t.Errorf("Len = %d after invalid batch, want 0 (validate-all-then-apply)", idx.Len())
			}
		})
	}
}

func TestIndex_RemoveIsIdempotentAndFinal(t *testing.T) {
	records := []Record{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0.8, 0.2}},
		{ID: "c", Vector: []float32{0, 1}},
	}

	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Add(context.Background(), records); err != nil {
				t.Fatalf("Add: %v", err)
			}

			if err := idx.Remove("a"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if err := idx.Remove("a"); err != nil {
				t.Fatalf("Remove again: %v", err)
			}
			if err := idx.Remove("never-existed"); err != nil {
				t.Fatalf("Remove missing: %v", err)
			}

			results, err := idx.Search(context.Background(), []float32{1, 0}, 3, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			for _, r := range results {
				if r.ID == "a" {
					t.Error("Removed record still returned by search")
				}
			}
			if idx.Len() != 2 {
				t.Errorf("Len = %d, want 2", idx.Len())
			}
		})
	}
}

func TestIndex_ReplaceOnIDCollision(t *testing.T) {
	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := idx.Add(ctx, []Record{{ID: "x", Vector: []float32{1, 0}}}); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := idx.Add(ctx, []Record{{ID: "x", Vector: []float32{0, 1}}}); err != nil {
				t.Fatalf("Add replace: %v", err)
			}
			if idx.Len() != 1 {
				t.Fatalf("Len = %d after replace, want 1", idx.Len())
			}

			results, err := idx.Search(ctx, []float32{0, 1}, 1, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 1 || results[0].Similarity != 1.0 {
				t.Errorf("Replaced vector not searchable: %+v", results)
			}
		})
	}
}

func TestIndex_FilteredSearch(t *testing.T) {
	records := []Record{
		{ID: "rock-1", Vector: []float32{1, 0}},
		{ID: "jazz-1", Vector: []float32{0.99, 0.01}},
		{ID: "rock-2", Vector: []float32{0.9, 0.1}},
	}
	onlyRock := func(id string) bool { return id == "rock-1" || id == "rock-2" }

	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Add(context.Background(), records); err != nil {
				t.Fatalf("Add: %v", err)
			}

			results, err := idx.Search(context.Background(), []float32{1, 0}, 2, onlyRock)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != 2 {
				t.Fatalf("got %d results, want 2", len(results))
			}
			if results[0].ID != "rock-1" || results[1].ID != "rock-2" {
				t.Errorf("order = [%s, %s], want [rock-1, rock-2]", results[0].ID, results[1].ID)
			}
		})
	}
}

func TestIndex_EmptyIndexSearch(t *testing.T) {
	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			results, err := idx.Search(context.Background(), []float32{1, 0}, 5, nil)
			if err != nil {
				t.Fatalf("Search on empty index: %v", err)
			}
			if len(results) != 0 {
				t.Errorf("got %d results from empty index", len(results))
			}
		})
	}
}

func TestIndex_InvalidK(t *testing.T) {
	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			_, err := idx.Search(context.Background(), []float32{1, 0}, 0, nil)
			if !errors.Is(err, ErrInvalidK) {
				t.Errorf("k=0: got %v, want ErrInvalidK", err)
			}
		})
	}
}

func TestIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, idx := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			if err := idx.Add(ctx, []Record{{ID: "x", Vector: []float32{1, 0}}}); err == nil {
				t.Error("Add with cancelled context succeeded")
			}
			if idx.Len() != 0 {
				t.Errorf("Len = %d after cancelled Add, want 0", idx.Len())
			}

			if _, err := idx.Search(ctx, []float32{1, 0}, 1, nil); err == nil {
				t.Error("Search with cancelled context succeeded")
			}
		})
	}
}

func TestNew_BackendSelection(t *testing.T) {
	flat, err := New(BackendFlat, 4)
	if err != nil {
		t.Fatalf("New flat: %v", err)
	}
	if flat.Backend() != BackendFlat {
		t.Errorf("Backend = %q, want %q", flat.Backend(), BackendFlat)
	}

	graph, err := New(BackendGraph, 4)
	if err != nil {
		t.Fatalf("New graph: %v", err)
	}
	if graph.Backend() != BackendGraph {
		t.Errorf("Backend = %q, want %q", graph.Backend(), BackendGraph)
	}

	if _, err := New("annoy", 4); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func ExampleNew() {
	idx, _ := New(BackendFlat, 2)
	_ = idx.Add(context.Background(), []Record{
		{ID: "song-a", Vector: []float32{1, 0}},
		{ID: "song-b", Vector: []float32{0, 1}},
	})

	results, _ := idx.Search(context.Background(), []float32{1, 0}, 1, nil)
	fmt.Println(results[0].ID)
	// Output: song-a
}
