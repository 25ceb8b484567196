// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package catalog provides the immutable-after-ingestion song catalog.
//
// The catalog owns song metadata; the vector index references songs by ID
// and never duplicates metadata. Song vectors are immutable once ingested:
// re-vectorizing a song requires Remove followed by AddSongs.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrEmptyID is returned when a song has no ID.
	ErrEmptyID = errors.New("song ID cannot be empty")

	// ErrDimensionMismatch is returned when a song vector does not match
	// the catalog's configured embedding dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSongNotFound is returned when a song ID is not in the catalog.
	ErrSongNotFound = errors.New("song not found")
)

// Song is a catalog record: a pre-vectorized track with descriptive metadata.
type Song struct {
	// ID uniquely identifies the song within the catalog.
	ID string `json:"id"`

	// Vector is the fixed-dimension embedding of the song.
	// Immutable once ingested.
	Vector []float32 `json:"vector"`

	// Metadata holds descriptive fields: genre, artist, title, mood, source_url.
	Metadata map[string]string `json:"metadata"`
}

// Filter is a conjunctive metadata predicate: every key must be present
// with an exactly (case-sensitively) matching value.
type Filter map[string]string

// Matches reports whether the metadata satisfies every filter entry.
// An empty or nil filter matches everything.
func (f Filter) Matches(meta map[string]string) bool {
	for key, want := range f {
		if got, ok := meta[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// Catalog is the in-memory metadata store for ingested songs.
// It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	dimension int
	songs     map[string]Song
}

// New creates a catalog for embeddings of the given dimension.
func New(dimension int) (*Catalog, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	return &Catalog{
		dimension: dimension,
		songs:     make(map[string]Song),
	}, nil
}

// Dimension returns the configured embedding dimension.
func (c *Catalog) Dimension() int {
	return c.dimension
}

// AddSongs ingests a batch of songs, replacing existing records on ID
// collision. The whole batch is validated before any record is applied;
// an invalid record leaves the catalog untouched.
func (c *Catalog) AddSongs(songs []Song) error {
	for i := range songs {
		if songs[i].ID == "" {
			return fmt.Errorf("record %d: %w", i, ErrEmptyID)
		}
		if len(songs[i].Vector) != c.dimension {
			return fmt.Errorf("record %d (%s): %w: got %d, want %d",
				i, songs[i].ID, ErrDimensionMismatch, len(songs[i].Vector), c.dimension)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range songs {
		c.songs[songs[i].ID] = cloneSong(songs[i])
	}
	return nil
}

// Get returns the song with the given ID.
func (c *Catalog) Get(id string) (Song, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	song, ok := c.songs[id]
	if !ok {
		return Song{}, fmt.Errorf("%s: %w", id, ErrSongNotFound)
	}
	return cloneSong(song), nil
}

// UpdateMetadata replaces the metadata of an existing song in place.
// The vector is not touched.
func (c *Catalog) UpdateMetadata(id string, metadata map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	song, ok := c.songs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSongNotFound)
	}
	song.Metadata = cloneMetadata(metadata)
	c.songs[id] = song
	return nil
}

// Remove deletes a song. Idempotent on missing IDs.
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.songs, id)
}

// Count returns the number of ingested songs.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.songs)
}

// Matches reports whether the song with the given ID satisfies the filter.
// Unknown IDs never match.
func (c *Catalog) Matches(id string, filter Filter) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	song, ok := c.songs[id]
	if !ok {
		return false
	}
	return filter.Matches(song.Metadata)
}

// FilterOnly returns up to limit songs matching the filter, ordered by
// ascending ID. This is the degraded retrieval path used when the vector
// index is unavailable: no similarity ranking is applied.
func (c *Catalog) FilterOnly(filter Filter, limit int) []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := make([]Song, 0, limit)
	for _, song := range c.songs {
		if filter.Matches(song.Metadata) {
			matched = append(matched, cloneSong(song))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// Genres returns the sorted set of distinct genre values in the catalog.
func (c *Catalog) Genres() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, song := range c.songs {
		if g, ok := song.Metadata["genre"]; ok && g != "" {
			seen[g] = struct{}{}
		}
	}

	genres := make([]string, 0, len(seen))
	for g := range seen {
		genres = append(genres, g)
	}
	sort.Strings(genres)
	return genres
}

// All returns every song ordered by ascending ID.
// Used for index rebuilds.
func (c *Catalog) All() []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	songs := make([]Song, 0, len(c.songs))
	for _, song := range c.songs {
		songs = append(songs, cloneSong(song))
	}
	sort.Slice(songs, func(i, j int) bool {
		return songs[i].ID < songs[j].ID
	})
	return songs
}

// cloneSong copies a song so callers cannot alias internal state.
// The vector is shared by reference: it is immutable by contract.
func cloneSong(s Song) Song {
	return Song{
		ID:       s.ID,
		Vector:   s.Vector,
		Metadata: cloneMetadata(s.Metadata),
	}
}

func cloneMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
