// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import (
	"context"
	"errors"
	"io"
)

// Backend identifiers. Snapshots are tagged with these so a load can
// reject a snapshot produced by a different backend.
const (
	// BackendFlat is the exact brute-force backend.
	BackendFlat = "flat"

	// BackendGraph is the approximate proximity-graph backend.
	BackendGraph = "graph"
)

// MetricCosine is the similarity metric used throughout.
// Raw cosine is clamped to [0,1]; anti-correlated vectors score 0.
const MetricCosine = "cosine"

var (
	// ErrDimensionMismatch is returned when a query or record vector does
	// not match the index's configured dimension. It is raised before any
	// mutation or search takes place.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyID is returned when a record has no ID.
	ErrEmptyID = errors.New("record ID cannot be empty")

	// ErrInvalidK is returned when a search requests a non-positive k.
	ErrInvalidK = errors.New("k must be positive")

	// ErrSnapshotMismatch is returned when a snapshot's backend identity,
	// dimension or format version disagrees with the running index.
	ErrSnapshotMismatch = errors.New("snapshot incompatible with index configuration")

	// ErrIndexUnavailable is returned when the backend failed to
	// initialize or load and cannot serve searches.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// Record pairs a song ID with its embedding vector.
type Record struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Result is a single search hit.
type Result struct {
	// ID is the matched song ID.
	ID string `json:"id"`

	// Similarity is the cosine similarity clamped to [0,1].
	Similarity float64 `json:"similarity"`

	// Metric names the distance metric used ("cosine").
	Metric string `json:"metric"`
}

// FilterFunc restricts search results by ID. A nil filter admits everything.
// The callback must be safe for concurrent use; it is typically a closure
// over the catalog's metadata filter.
type FilterFunc func(id string) bool

// Index is the similarity search contract shared by both backends.
// Implementations are safe for concurrent use: searches may run in
// parallel, mutations take exclusive access.
//
// Ordering contract: Search returns up to k results in strictly
// non-increasing similarity, ties broken by ascending ID.
type Index interface {
	// Backend returns the backend identifier (BackendFlat or BackendGraph).
	Backend() string

	// Dimension returns the configured embedding dimension.
	Dimension() int

	// Len returns the number of indexed vectors.
	Len() int

	// Add inserts or replaces records. The whole batch is validated before
	// any record is applied: a dimension mismatch anywhere leaves the
	// index unchanged.
	Add(ctx context.Context, records []Record) error

	// Search returns up to k results for the query vector, most similar
	// first. The optional filter is applied with oversampling on the
	// approximate backend so filtering does not degrade recall beyond the
	// backend's own documented bound.
	Search(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, error)

	// Remove deletes a record. Idempotent on missing IDs.
	Remove(id string) error

	// Snapshot serializes the index. The written form is tagged with the
	// backend identity and dimension.
	Snapshot(w io.Writer) error

	// Load replaces the index contents from a snapshot, rejecting
	// snapshots whose backend or dimension disagree with this index.
	Load(r io.Reader) error
}

// New constructs an index for the named backend.
func New(backend string, dimension int, opts ...GraphOption) (Index, error) {
	switch backend {
	case BackendFlat:
		return NewFlat(dimension)
	case BackendGraph:
		return NewGraph(dimension, opts...)
	default:
		return nil, errors.New("unknown index backend: " + backend)
	}
}

// validateBatch checks every record before any is applied.
func validateBatch(records []Record, dimension int) error {
	for i := range records {
		if records[i].ID == "" {
			return ErrEmptyID
		}
		if len(records[i].Vector) != dimension {
			return ErrDimensionMismatch
		}
	}
	return nil
}

// validateQuery checks search arguments.
func validateQuery(query []float32, k, dimension int) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if len(query) != dimension {
		return ErrDimensionMismatch
	}
	return nil
}
