// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import (
	"context"
	"io"
	"sort"
	"sync"
)

// entry is a stored vector with its precomputed norm.
type entry struct {
	vector []float32
	norm   float64
}

// Flat is the exact backend: a brute-force cosine scan over all vectors,
// O(n·d) per query. It always returns the true top-k and serves as the
// correctness reference for the graph backend.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
}

// NewFlat creates an empty exact index for the given dimension.
func NewFlat(dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, ErrDimensionMismatch
	}
	return &Flat{
		dimension: dimension,
		entries:   make(map[string]entry),
	}, nil
}

// Backend returns BackendFlat.
func (f *Flat) Backend() string { return BackendFlat }

// Dimension returns the configured embedding dimension.
func (f *Flat) Dimension() int { return f.dimension }

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Add inserts or replaces records, validate-all-then-apply.
func (f *Flat) Add(ctx context.Context, records []Record) error {
	if err := validateBatch(records, f.dimension); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range records {
		f.entries[records[i].ID] = entry{
			vector: records[i].Vector,
			norm:   vectorNorm(records[i].Vector),
		}
	}
	return nil
}

// Search scans every stored vector and returns the true top-k.
func (f *Flat) Search(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, error) {
	if err := validateQuery(query, k, f.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryNorm := vectorNorm(query)

	f.mu.RLock()
	results := make([]Result, 0, len(f.entries))
	for id, e := range f.entries {
		if filter != nil && !filter(id) {
			continue
		}
		results = append(results, Result{
			ID:         id,
			Similarity: cosineSimilarity(query, e.vector, queryNorm, e.norm),
			Metric:     MetricCosine,
		})
	}
	f.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return lessResult(results[i], results[j])
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove deletes a record. Idempotent on missing IDs.
func (f *Flat) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

// Snapshot writes a tagged serialization of the index.
func (f *Flat) Snapshot(w io.Writer) error {
	f.mu.RLock()
	records := make([]Record, 0, len(f.entries))
	for id, e := range f.entries {
		records = append(records, Record{ID: id, Vector: e.vector})
	}
	f.mu.RUnlock()

	return writeSnapshot(w, BackendFlat, f.dimension, records)
}

// Load replaces the index contents from a snapshot, rejecting snapshots
// from a different backend or dimension.
func (f *Flat) Load(r io.Reader) error {
	records, err := readSnapshot(r, BackendFlat, f.dimension)
	if err != nil {
		return err
	}

	entries := make(map[string]entry, len(records))
	for i := range records {
		entries[records[i].ID] = entry{
			vector: records[i].Vector,
			norm:   vectorNorm(records[i].Vector),
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	return nil
}
