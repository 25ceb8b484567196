// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

// genreKey is the metadata key carrying a song's genre label.
const genreKey = "genre"

// blendQuery combines the caller's query with the stored preference as
// (1-w)*query + w*preference. Cosine scoring is direction-only, so a
// zero preference vector leaves the ranking unchanged.
func blendQuery(query, preference []float32, weight float64) []float32 {
	out := make([]float32, len(query))
	for i := range query {
		out[i] = float32((1-weight)*float64(query[i]) + weight*float64(preference[i]))
	}
	return out
}

// recencyFactor discounts profile influence by profile age, halving per
// half-life. A never-updated profile contributes no history, so it gets
// the neutral factor 1.
func recencyFactor(updatedAt time.Time, now time.Time, halfLife time.Duration, sessions int) float64 {
	if sessions == 0 || updatedAt.IsZero() || !now.After(updatedAt) {
		return 1
	}
	age := now.Sub(updatedAt)
	return math.Exp2(-float64(age) / float64(halfLife))
}

// affinityBoost returns 1 plus the genre's share of all affinity counts
// scaled by the configured boost. Unknown genres stay neutral.
func affinityBoost(genre string, affinity map[string]int, boost float64) float64 {
	if genre == "" || len(affinity) == 0 {
		return 1
	}
	count := affinity[genre]
	if count == 0 {
		return 1
	}
	total := 0
	for _, c := range affinity {
		total += c
	}
	return 1 + boost*float64(count)/float64(total)
}

// rerank turns index candidates into scored recommendations:
// score = similarity * recency * affinity. Results are ordered by
// descending score, ties broken by ascending song ID.
func (e *Engine) rerank(candidates []vectorindex.Result, cat *catalog.Catalog, profile memory.Profile, now time.Time, k int) []Recommendation {
	recency := recencyFactor(profile.UpdatedAt, now, e.cfg.RecencyHalfLife, profile.Sessions)

	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		song, err := cat.Get(c.ID)
		if err != nil {
			// Indexed but since removed from the catalog.
			continue
		}
		aff := affinityBoost(song.Metadata[genreKey], profile.GenreAffinity, e.cfg.AffinityBoost)
		out = append(out, Recommendation{
			SongID:   c.ID,
			Score:    c.Similarity * recency * aff,
			Metadata: song.Metadata,
			Signals: Signals{
				Similarity: c.Similarity,
				Recency:    recency,
				Affinity:   aff,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SongID < out[j].SongID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
