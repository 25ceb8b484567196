// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

// Package memory maintains per-user preference profiles and bounded
// conversation history on top of an encrypted key-value store.
//
// Loads never fail the caller: a missing, unreadable, or tampered record
// yields a fresh in-memory state so recommendation requests degrade
// instead of erroring. Mutations for a given user are serialized with a
// per-user lock while distinct users proceed concurrently.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/euphonia/internal/logging"
	"github.com/tomtom215/euphonia/internal/metrics"
	"github.com/tomtom215/euphonia/internal/securestore"
)

const (
	profileKeyPrefix = "profile:"
	historyKeyPrefix = "history:"

	// DefaultAlpha is the blend weight given to the newest emotion vector.
	DefaultAlpha = 0.3

	// DefaultWindow bounds the conversation history per user.
	DefaultWindow = 100

	// persistRetryDelay is the pause before the single persist retry.
	persistRetryDelay = 100 * time.Millisecond
)

var (
	// ErrEmptyUserID is returned when an operation names no user.
	ErrEmptyUserID = errors.New("memory: empty user id")

	// ErrDimensionMismatch is returned when an emotion vector does not
	// match the configured dimension.
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
)

// Config controls blending and history retention.
type Config struct {
	// Dimension is the preference vector dimension.
	Dimension int

	// Alpha is the weight of the newest emotion vector in the blend.
	// Zero selects DefaultAlpha.
	Alpha float64

	// Window bounds conversation history entries per user. Zero selects
	// DefaultWindow.
	Window int
}

func (c Config) withDefaults() (Config, error) {
	if c.Dimension <= 0 {
		return c, fmt.Errorf("memory: invalid dimension %d", c.Dimension)
	}
	if c.Alpha == 0 {
		c.Alpha = DefaultAlpha
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return c, fmt.Errorf("memory: alpha %v outside [0,1]", c.Alpha)
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Window < 1 {
		return c, fmt.Errorf("memory: invalid window %d", c.Window)
	}
	return c, nil
}

// UserMemory is one user's loaded state. It is a detached snapshot:
// mutations apply in memory and reach the store only through
// Manager.Persist. Durable reports whether the state was read intact
// from the store or recreated after a load failure.
type UserMemory struct {
	Profile Profile
	History []ConversationEntry

	// Durable is false when the loaded state had to be recreated, so a
	// subsequent persist may overwrite history that could not be read.
	Durable bool

	alpha  float64
	window int
}

// EnrichedContext is the per-call summary handed to recommendation
// scoring: a detached profile snapshot plus the most recent
// conversation entries.
type EnrichedContext struct {
	Profile Profile
	Recent  []ConversationEntry
}

// Manager loads, mutates, and persists user memory.
type Manager struct {
	store  securestore.Store
	cfg    Config
	locks  *keyedMutex
	logger zerolog.Logger
}

// NewManager wraps an encrypted store with profile semantics.
func NewManager(store securestore.Store, cfg Config) (*Manager, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		locks:  newKeyedMutex(),
		logger: logging.With().Str("component", "memory").Logger(),
	}, nil
}

// Lock serializes access to one user. The returned func releases it.
func (m *Manager) Lock(userID string) func() {
	return m.locks.Lock(userID)
}

// Load reads a user's profile and history. It never returns an error:
// a missing record is a new user, and an unreadable or tampered record
// is replaced by a fresh state with Durable set to false.
func (m *Manager) Load(ctx context.Context, userID string) *UserMemory {
	um := &UserMemory{
		Profile: newProfile(userID, m.cfg.Dimension),
		Durable: true,
		alpha:   m.cfg.Alpha,
		window:  m.cfg.Window,
	}
	if userID == "" {
		um.Durable = false
		return um
	}

	var profile Profile
	switch err := m.loadJSON(ctx, profileKeyPrefix+userID, &profile); {
	case err == nil:
		if len(profile.Preference) == m.cfg.Dimension {
			if profile.GenreAffinity == nil {
				profile.GenreAffinity = make(map[string]int)
			}
			um.Profile = profile
		} else {
			m.logger.Warn().Str("user_id", userID).
				Int("stored", len(profile.Preference)).
				Int("want", m.cfg.Dimension).
				Msg("stored preference dimension mismatch, resetting profile")
			um.Durable = false
		}
	case errors.Is(err, securestore.ErrNotFound):
		// New user.
	default:
		m.logger.Warn().Err(err).Str("user_id", userID).
			Msg("profile unreadable, starting fresh")
		um.Durable = false
	}

	var history []ConversationEntry
	switch err := m.loadJSON(ctx, historyKeyPrefix+userID, &history); {
	case err == nil:
		if len(history) > m.cfg.Window {
			history = history[len(history)-m.cfg.Window:]
		}
		um.History = history
	case errors.Is(err, securestore.ErrNotFound):
	default:
		m.logger.Warn().Err(err).Str("user_id", userID).
			Msg("history unreadable, starting fresh")
		um.Durable = false
	}
	return um
}

// Persist writes a user's profile and history. Transient store failures
// are retried once before the error is surfaced.
func (m *Manager) Persist(ctx context.Context, um *UserMemory) error {
	if um.Profile.UserID == "" {
		return ErrEmptyUserID
	}
	if err := m.putJSON(ctx, profileKeyPrefix+um.Profile.UserID, um.Profile); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	history := um.History
	if history == nil {
		history = []ConversationEntry{}
	}
	if err := m.putJSON(ctx, historyKeyPrefix+um.Profile.UserID, history); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	um.Durable = true
	return nil
}

// Delete removes all persisted state for a user.
func (m *Manager) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	unlock := m.locks.Lock(userID)
	defer unlock()
	if err := m.store.Delete(ctx, profileKeyPrefix+userID); err != nil {
		metrics.RecordStoreOperation("delete", err)
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := m.store.Delete(ctx, historyKeyPrefix+userID); err != nil {
		metrics.RecordStoreOperation("delete", err)
		return fmt.Errorf("delete history: %w", err)
	}
	metrics.RecordStoreOperation("delete", nil)
	return nil
}

func (m *Manager) loadJSON(ctx context.Context, key string, v any) error {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		// A missing key is a normal outcome, not a store failure.
		if !errors.Is(err, securestore.ErrNotFound) {
			metrics.RecordStoreOperation("get", err)
			if errors.Is(err, securestore.ErrAuthenticationFailed) {
				metrics.StoreAuthFailures.Inc()
			}
		}
		return err
	}
	metrics.RecordStoreOperation("get", nil)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func (m *Manager) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := m.store.Put(ctx, key, raw); err == nil {
		metrics.RecordStoreOperation("put", nil)
		return nil
	} else if ctx.Err() != nil {
		metrics.RecordStoreOperation("put", err)
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(persistRetryDelay):
	}
	err = m.store.Put(ctx, key, raw)
	metrics.RecordStoreOperation("put", err)
	return err
}

// Update blends an emotion vector into the preference vector and counts
// genre exposure. The newest signal carries weight alpha.
func (u *UserMemory) Update(emotion []float32, emotionLabel string, genres []string) error {
	if len(emotion) != len(u.Profile.Preference) {
		return fmt.Errorf("%w: got %d want %d",
			ErrDimensionMismatch, len(emotion), len(u.Profile.Preference))
	}
	blend(u.Profile.Preference, emotion, u.alpha)
	for _, g := range genres {
		if g == "" {
			continue
		}
		u.Profile.GenreAffinity[g]++
	}
	if emotionLabel != "" {
		u.Profile.LastEmotion = emotionLabel
	}
	u.Profile.Sessions++
	u.Profile.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendConversation records an interaction, evicting the oldest entry
// once the window is full. A missing ID or timestamp is filled in, and
// the assigned ID is returned.
func (u *UserMemory) AppendConversation(e ConversationEntry) string {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	u.History = append(u.History, e)
	if len(u.History) > u.window {
		u.History = u.History[len(u.History)-u.window:]
	}
	return e.ID
}

// EnrichedContext returns a snapshot of the profile together with the
// last window conversation entries. Both are copies, so scoring cannot
// mutate the loaded state.
func (u *UserMemory) EnrichedContext(window int) EnrichedContext {
	n := len(u.History)
	if window < n {
		n = window
	}
	if n < 0 {
		n = 0
	}
	recent := make([]ConversationEntry, n)
	copy(recent, u.History[len(u.History)-n:])
	return EnrichedContext{
		Profile: u.Profile.clone(),
		Recent:  recent,
	}
}

// Snapshot returns a deep copy of the profile for read-only callers.
func (u *UserMemory) Snapshot() Profile {
	return u.Profile.clone()
}
