// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package recommend

import (
	"errors"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/memory"
)

var (
	// ErrEmptyUserID is returned when a request names no user.
	ErrEmptyUserID = errors.New("recommend: empty user id")

	// ErrInvalidK is returned when a request asks for a non-positive
	// number of results.
	ErrInvalidK = errors.New("recommend: k must be positive")
)

// Request is one recommendation call. The query vector doubles as the
// emotional embedding of the current utterance; producing it is the
// caller's concern.
type Request struct {
	// UserID identifies whose memory reweights and records the call.
	UserID string `json:"user_id"`

	// Query is the embedding of the current utterance.
	Query []float32 `json:"query"`

	// ContextTags filter candidates by metadata, conjunctively.
	ContextTags catalog.Filter `json:"context_tags,omitempty"`

	// K is the number of results wanted.
	K int `json:"k"`

	// Input is the raw utterance. Only its digest is ever stored.
	Input string `json:"input,omitempty"`

	// Emotion is the detected dominant emotion label.
	Emotion string `json:"emotion,omitempty"`

	// EmotionConfidence is the classifier confidence in [0,1].
	EmotionConfidence float64 `json:"emotion_confidence,omitempty"`
}

// Signals itemizes what contributed to a candidate's final score.
type Signals struct {
	// Similarity is the index's cosine similarity for the blended query.
	Similarity float64 `json:"similarity"`

	// Recency is the profile-age discount in (0,1].
	Recency float64 `json:"recency"`

	// Affinity is the genre boost, at least 1.
	Affinity float64 `json:"affinity"`
}

// Recommendation is one ranked result.
type Recommendation struct {
	// SongID identifies the song.
	SongID string `json:"song_id"`

	// Score is the composite ranking score.
	Score float64 `json:"score"`

	// Metadata is the song's descriptive metadata.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Signals explains the score's components.
	Signals Signals `json:"signals"`
}

// Response is the outcome of one recommendation call.
type Response struct {
	// Results are the top-k reranked recommendations.
	Results []Recommendation `json:"results"`

	// Profile is a snapshot of the user's updated profile.
	Profile memory.Profile `json:"profile"`

	// ConversationID is the id of the appended history entry.
	ConversationID string `json:"conversation_id,omitempty"`

	// TopGenres are the user's strongest genre affinities after this
	// call, for explanation surfaces.
	TopGenres []string `json:"top_genres,omitempty"`

	// Degraded is true when the index was unavailable and results came
	// from metadata filtering alone, without similarity ranking.
	Degraded bool `json:"degraded"`

	// Durable is false when the profile update could not be persisted.
	Durable bool `json:"durable"`

	// Backend names the index backend that served the search.
	Backend string `json:"backend"`
}
