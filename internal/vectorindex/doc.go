// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

/*
Package vectorindex provides cosine-similarity search over song embeddings
with two interchangeable backends behind a single Index interface.

# Backends

The flat backend scans every vector per query. It is the correctness
reference: given the same data it always returns the true top-k.

The graph backend maintains a proximity graph, built incrementally on
insert with a bounded out-degree, and answers queries with a greedy beam
search. Query cost is sub-linear in catalog size; in exchange it may miss
some true neighbors. Its recall contract (>= 0.9 recall@10 against the
flat backend with default parameters) is enforced by the conformance
tests, not assumed.

The backend is selected by configuration at construction time via New;
callers hold only the Index interface and never switch on the concrete
type.

# Filtering

Search accepts an optional FilterFunc. The flat backend filters during its
scan. The graph backend widens its beam to an oversized unfiltered
candidate pool before filtering, so a selective filter does not silently
collapse recall below the backend's own bound.

# Snapshots

Snapshot/Load serialize the indexed vectors with a header carrying the
format version, backend identity and dimension. Load rejects any mismatch
rather than misreading an incompatible snapshot.
*/
package vectorindex
