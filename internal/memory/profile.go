// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Profile is a user's persistent preference state. The preference vector
// is a running exponential blend of the emotion vectors of past requests.
type Profile struct {
	// UserID identifies the owner.
	UserID string `json:"user_id"`

	// Preference is the blended preference vector, catalog dimension.
	Preference []float32 `json:"preference"`

	// GenreAffinity counts how often each genre was surfaced to the user.
	GenreAffinity map[string]int `json:"genre_affinity"`

	// Sessions counts recommendation calls that updated this profile.
	Sessions int `json:"sessions"`

	// LastEmotion is the most recent dominant emotion label.
	LastEmotion string `json:"last_emotion,omitempty"`

	// CreatedAt is when the profile was first persisted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationEntry records one interaction. The input is stored only as
// an opaque digest, never as raw text, to limit sensitive-data exposure.
type ConversationEntry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Timestamp is when the interaction happened.
	Timestamp time.Time `json:"timestamp"`

	// InputRef is the opaque reference to the user input.
	InputRef string `json:"input_ref"`

	// Emotion is the detected dominant emotion label.
	Emotion string `json:"emotion"`

	// Confidence is the emotion classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// RecommendedIDs lists the song IDs returned for this interaction.
	RecommendedIDs []string `json:"recommended_ids"`
}

// InputRef digests an utterance into the opaque form stored in history.
func InputRef(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// newProfile creates an empty profile for a user.
func newProfile(userID string, dimension int) Profile {
	now := time.Now().UTC()
	return Profile{
		UserID:        userID,
		Preference:    make([]float32, dimension),
		GenreAffinity: make(map[string]int),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// blend applies new = alpha*emotion + (1-alpha)*old in place.
func blend(old []float32, emotion []float32, alpha float64) {
	for i := range old {
		old[i] = float32(alpha*float64(emotion[i]) + (1-alpha)*float64(old[i]))
	}
}

// clone returns a deep copy so callers cannot alias persisted state.
func (p Profile) clone() Profile {
	out := p
	out.Preference = make([]float32, len(p.Preference))
	copy(out.Preference, p.Preference)
	out.GenreAffinity = make(map[string]int, len(p.GenreAffinity))
	for k, v := range p.GenreAffinity {
		out.GenreAffinity[k] = v
	}
	return out
}

// TopGenres returns up to n genres by descending affinity count, ties
// broken alphabetically.
func (p Profile) TopGenres(n int) []string {
	type pair struct {
		genre string
		count int
	}
	pairs := make([]pair, 0, len(p.GenreAffinity))
	for g, c := range p.GenreAffinity {
		pairs = append(pairs, pair{g, c})
	}
	// Insertion sort: affinity maps are small.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0; j-- {
			a, b := pairs[j-1], pairs[j]
			if b.count > a.count || (b.count == a.count && b.genre < a.genre) {
				pairs[j-1], pairs[j] = b, a
			} else {
				break
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]string, 0, n)
	for _, p := range pairs[:n] {
		out = append(out, p.genre)
	}
	return out
}
