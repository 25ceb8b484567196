// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

/*
Package recommend orchestrates a single recommendation request end to end.

One call flows through five steps:

 1. Load the user's memory, falling back to a fresh profile when the
    stored state is missing or unreadable.
 2. Blend the caller's query vector with the stored preference vector.
 3. Search the vector index with an oversampled k and the request's
    context tags as a conjunctive metadata filter.
 4. Rerank candidates by similarity * recency * genre affinity.
 5. Update and persist the user's memory, then return the top k.

# Failure handling

Index searches run through a circuit breaker. When the index is
unavailable, or the breaker is open, the engine degrades to
metadata-filter-only retrieval over the catalog and flags the response
as degraded rather than failing the request. A persist failure after
results are computed returns those results with Durable set to false.
A context cancelled before the memory step aborts the call without
touching the user's stored state.

The engine is stateless across calls: all cross-call state lives in the
user memory and the vector index.
*/
package recommend
