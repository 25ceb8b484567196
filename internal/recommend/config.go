// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package recommend

import (
	"fmt"
	"time"
)

// Defaults for the scoring pipeline.
const (
	// DefaultBlendWeight is the share of the stored preference vector in
	// the blended query. Distinct from the memory-update weight.
	DefaultBlendWeight = 0.3

	// DefaultOversample multiplies k when searching the index so the
	// reranker has headroom to reorder.
	DefaultOversample = 4

	// DefaultRecencyHalfLife controls how fast an aging profile's
	// influence on scoring fades.
	DefaultRecencyHalfLife = 7 * 24 * time.Hour

	// DefaultAffinityBoost caps the extra weight a fully dominant genre
	// can add on top of base similarity.
	DefaultAffinityBoost = 0.5

	// DefaultTopGenres is how many profile genres feed explanations.
	DefaultTopGenres = 3
)

// BreakerConfig tunes the circuit breaker guarding index searches.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the consecutive failure count that opens it.
	FailureThreshold uint32
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Config controls query blending and reranking.
type Config struct {
	// BlendWeight is the stored-preference share of the blended query,
	// in [0,1). Zero preserves the caller's query untouched.
	BlendWeight float64

	// Oversample multiplies k for the index search.
	Oversample int

	// RecencyHalfLife discounts profile-driven signals by profile age.
	RecencyHalfLife time.Duration

	// AffinityBoost scales the genre-affinity contribution.
	AffinityBoost float64

	// TopGenres bounds the profile genres included in explanations.
	TopGenres int

	// Breaker tunes the index circuit breaker.
	Breaker BreakerConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BlendWeight:     DefaultBlendWeight,
		Oversample:      DefaultOversample,
		RecencyHalfLife: DefaultRecencyHalfLife,
		AffinityBoost:   DefaultAffinityBoost,
		TopGenres:       DefaultTopGenres,
		Breaker:         defaultBreakerConfig(),
	}
}

// Validate rejects configurations that cannot score sensibly.
func (c Config) Validate() error {
	if c.BlendWeight < 0 || c.BlendWeight >= 1 {
		return fmt.Errorf("recommend: blend weight %v outside [0,1)", c.BlendWeight)
	}
	if c.Oversample < 1 {
		return fmt.Errorf("recommend: oversample %d must be at least 1", c.Oversample)
	}
	if c.RecencyHalfLife <= 0 {
		return fmt.Errorf("recommend: recency half-life must be positive")
	}
	if c.AffinityBoost < 0 {
		return fmt.Errorf("recommend: affinity boost %v must be non-negative", c.AffinityBoost)
	}
	if c.TopGenres < 0 {
		return fmt.Errorf("recommend: top genres %d must be non-negative", c.TopGenres)
	}
	return nil
}
