// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/euphonia/internal/catalog"
	"github.com/tomtom215/euphonia/internal/logging"
	"github.com/tomtom215/euphonia/internal/memory"
	"github.com/tomtom215/euphonia/internal/metrics"
	"github.com/tomtom215/euphonia/internal/vectorindex"
)

const breakerName = "vector-index"

// Engine orchestrates one recommendation call: load memory, blend the
// query with the stored preference, search the index, rerank, update and
// persist memory. The engine itself holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	cfg     Config
	catalog *catalog.Catalog
	index   vectorindex.Index
	mem     *memory.Manager
	breaker *gobreaker.CircuitBreaker[[]vectorindex.Result]
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine wires the catalog, index, and user memory together.
func NewEngine(cat *catalog.Catalog, idx vectorindex.Index, mem *memory.Manager, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cat.Dimension() != idx.Dimension() {
		return nil, fmt.Errorf("recommend: catalog dimension %d does not match index dimension %d",
			cat.Dimension(), idx.Dimension())
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
		// Caller mistakes and cancellations say nothing about index health.
		IsSuccessful: func(err error) bool {
			switch {
			case err == nil:
				return true
			case errors.Is(err, vectorindex.ErrDimensionMismatch),
				errors.Is(err, vectorindex.ErrInvalidK),
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return true
			}
			return false
		},
	}

	return &Engine{
		cfg:     cfg,
		catalog: cat,
		index:   idx,
		mem:     mem,
		breaker: gobreaker.NewCircuitBreaker[[]vectorindex.Result](settings),
		logger:  logging.With().Str("component", "recommend").Logger(),
		now:     time.Now,
	}, nil
}

// Recommend serves one request. A failed index triggers the degraded
// metadata-only path; a failed persist returns results with Durable set
// to false. A cancelled context before the memory step leaves the
// user's state untouched.
func (e *Engine) Recommend(ctx context.Context, req Request) (resp *Response, err error) {
	start := e.now()
	defer func() {
		candidates := 0
		degraded := false
		durable := true
		if resp != nil {
			candidates = len(resp.Results)
			degraded = resp.Degraded
			durable = resp.Durable
		}
		metrics.RecordRecommendation(time.Since(start), candidates, degraded, durable, err)
	}()

	if req.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if req.K <= 0 {
		return nil, ErrInvalidK
	}
	if len(req.Query) != e.index.Dimension() {
		return nil, fmt.Errorf("%w: query has %d, index wants %d",
			vectorindex.ErrDimensionMismatch, len(req.Query), e.index.Dimension())
	}

	log := e.logger.With().
		Str("user_id", req.UserID).
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Logger()

	unlock := e.mem.Lock(req.UserID)
	defer unlock()

	um := e.mem.Load(ctx, req.UserID)
	blended := blendQuery(req.Query, um.Profile.Preference, e.cfg.BlendWeight)

	results, degraded, err := e.search(ctx, blended, req.K, req.ContextTags)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Degraded: degraded,
		Durable:  um.Durable,
		Backend:  e.index.Backend(),
	}
	if degraded {
		out.Results = e.degradedResults(req.ContextTags, req.K)
		log.Warn().Int("results", len(out.Results)).
			Msg("index unavailable, served metadata-only results")
	} else {
		out.Results = e.rerank(results, e.catalog, um.Profile, e.now(), req.K)
	}

	// The memory step is all or nothing: an abandoned call must not
	// leave a partial update behind.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if uerr := um.Update(req.Query, req.Emotion, resultGenres(out.Results)); uerr != nil {
		return nil, uerr
	}
	out.ConversationID = um.AppendConversation(memory.ConversationEntry{
		InputRef:       memory.InputRef(req.Input),
		Emotion:        req.Emotion,
		Confidence:     req.EmotionConfidence,
		RecommendedIDs: resultIDs(out.Results),
	})

	if perr := e.mem.Persist(ctx, um); perr != nil {
		out.Durable = false
		log.Warn().Err(perr).Msg("profile update not persisted, serving non-durable result")
	}

	out.Profile = um.Snapshot()
	out.TopGenres = um.Profile.TopGenres(e.cfg.TopGenres)
	return out, nil
}

// search runs the index query through the circuit breaker. The second
// return value reports whether the caller should take the degraded path.
func (e *Engine) search(ctx context.Context, query []float32, k int, tags catalog.Filter) ([]vectorindex.Result, bool, error) {
	searchK := k * e.cfg.Oversample
	var filter vectorindex.FilterFunc
	if len(tags) > 0 {
		filter = func(id string) bool { return e.catalog.Matches(id, tags) }
	}

	searchStart := e.now()
	results, err := e.breaker.Execute(func() ([]vectorindex.Result, error) {
		return e.index.Search(ctx, query, searchK, filter)
	})
	metrics.RecordIndexSearch(e.index.Backend(), time.Since(searchStart), err)

	switch {
	case err == nil:
		return results, false, nil
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, vectorindex.ErrIndexUnavailable):
		return nil, true, nil
	default:
		return nil, false, err
	}
}

// degradedResults serves metadata-filtered songs with no similarity
// ranking, ordered by ascending song ID.
func (e *Engine) degradedResults(tags catalog.Filter, k int) []Recommendation {
	songs := e.catalog.FilterOnly(tags, k)
	out := make([]Recommendation, 0, len(songs))
	for _, s := range songs {
		out = append(out, Recommendation{
			SongID:   s.ID,
			Metadata: s.Metadata,
			Signals:  Signals{Recency: 1, Affinity: 1},
		})
	}
	return out
}

func resultIDs(recs []Recommendation) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.SongID)
	}
	return ids
}

func resultGenres(recs []Recommendation) []string {
	genres := make([]string, 0, len(recs))
	for _, r := range recs {
		if g := r.Metadata[genreKey]; g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}
