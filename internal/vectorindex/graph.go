// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import (
	"container/heap"
	"context"
	"io"
	"sort"
	"sync"
)

// Graph backend tuning defaults. Chosen to hold the recall contract
// (>= 0.9 recall@10 against the flat backend) on catalogs in the
// tens-of-thousands range while keeping query cost sub-linear.
const (
	// defaultMaxNeighbors bounds the out-degree of every node.
	defaultMaxNeighbors = 16

	// defaultEfConstruction is the candidate breadth used when linking a
	// newly inserted node.
	defaultEfConstruction = 100

	// defaultEfSearch is the beam breadth used on queries.
	defaultEfSearch = 50

	// defaultFilterOversample multiplies k for the unfiltered candidate
	// pool when a metadata filter is present, so that filtering does not
	// silently degrade recall.
	defaultFilterOversample = 4
)

// GraphOption tunes the approximate backend.
type GraphOption func(*Graph)

// WithMaxNeighbors sets the per-node out-degree bound.
func WithMaxNeighbors(m int) GraphOption {
	return func(g *Graph) {
		if m > 0 {
			g.maxNeighbors = m
		}
	}
}

// WithEfConstruction sets the construction candidate breadth.
func WithEfConstruction(ef int) GraphOption {
	return func(g *Graph) {
		if ef > 0 {
			g.efConstruction = ef
		}
	}
}

// WithEfSearch sets the query beam breadth.
func WithEfSearch(ef int) GraphOption {
	return func(g *Graph) {
		if ef > 0 {
			g.efSearch = ef
		}
	}
}

// graphNode is a vector plus its adjacency in the proximity graph.
type graphNode struct {
	vector    []float32
	norm      float64
	neighbors []string
}

// Graph is the approximate backend: a proximity graph built incrementally
// on insert and traversed with a greedy beam search on query. It trades a
// bounded amount of recall for sub-linear query cost.
//
// Recall contract: with default parameters the backend must reach at least
// 0.9 recall@10 against the flat backend on a representative benchmark;
// the conformance tests enforce this.
type Graph struct {
	mu             sync.RWMutex
	dimension      int
	maxNeighbors   int
	efConstruction int
	efSearch       int
	oversample     int
	nodes          map[string]*graphNode
	entryID        string
}

// NewGraph creates an empty approximate index for the given dimension.
func NewGraph(dimension int, opts ...GraphOption) (*Graph, error) {
	if dimension <= 0 {
		return nil, ErrDimensionMismatch
	}
	g := &Graph{
		dimension:      dimension,
		maxNeighbors:   defaultMaxNeighbors,
		efConstruction: defaultEfConstruction,
		efSearch:       defaultEfSearch,
		oversample:     defaultFilterOversample,
		nodes:          make(map[string]*graphNode),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Backend returns BackendGraph.
func (g *Graph) Backend() string { return BackendGraph }

// Dimension returns the configured embedding dimension.
func (g *Graph) Dimension() int { return g.dimension }

// Len returns the number of indexed vectors.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Add inserts or replaces records, validate-all-then-apply.
// Inserts link each new node to its nearest existing nodes, discovered
// with the same beam search that serves queries.
func (g *Graph) Add(ctx context.Context, records []Record) error {
	if err := validateBatch(records, g.dimension); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range records {
		g.insertLocked(records[i].ID, records[i].Vector)
	}
	return nil
}

// insertLocked adds one vector to the graph. Must hold the write lock.
func (g *Graph) insertLocked(id string, vector []float32) {
	// Replace on collision: drop the stale node and its links first.
	if _, exists := g.nodes[id]; exists {
		g.removeLocked(id)
	}

	node := &graphNode{vector: vector, norm: vectorNorm(vector)}

	if len(g.nodes) == 0 {
		g.nodes[id] = node
		g.entryID = id
		return
	}

	candidates := g.beamSearchLocked(vector, node.norm, g.efConstruction)

	limit := g.maxNeighbors
	if len(candidates) < limit {
		limit = len(candidates)
	}
	node.neighbors = make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		node.neighbors = append(node.neighbors, c.ID)
	}
	g.nodes[id] = node

	// Backlinks keep the graph navigable from older nodes to newer ones.
	for _, neighborID := range node.neighbors {
		neighbor := g.nodes[neighborID]
		neighbor.neighbors = append(neighbor.neighbors, id)
		if len(neighbor.neighbors) > g.maxNeighbors {
			g.pruneNeighborsLocked(neighborID, neighbor)
		}
	}
}

// pruneNeighborsLocked trims a node's adjacency back to maxNeighbors,
// keeping the most similar links. Must hold the write lock.
func (g *Graph) pruneNeighborsLocked(id string, node *graphNode) {
	type link struct {
		id  string
		sim float64
	}

	links := make([]link, 0, len(node.neighbors))
	for _, nid := range node.neighbors {
		other, ok := g.nodes[nid]
		if !ok || nid == id {
			continue
		}
		links = append(links, link{
			id:  nid,
			sim: cosineSimilarity(node.vector, other.vector, node.norm, other.norm),
		})
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].sim != links[j].sim {
			return links[i].sim > links[j].sim
		}
		return links[i].id < links[j].id
	})

	if len(links) > g.maxNeighbors {
		links = links[:g.maxNeighbors]
	}
	node.neighbors = node.neighbors[:0]
	for _, l := range links {
		node.neighbors = append(node.neighbors, l.id)
	}
}

// beamSearchLocked runs a greedy best-first traversal from the entry point
// and returns up to ef candidates sorted by non-increasing similarity.
// Must hold at least the read lock.
func (g *Graph) beamSearchLocked(query []float32, queryNorm float64, ef int) []Result {
	entry, ok := g.nodes[g.entryID]
	if !ok {
		return nil
	}

	entrySim := cosineSimilarity(query, entry.vector, queryNorm, entry.norm)
	visited := map[string]struct{}{g.entryID: {}}

	candidates := &scoredHeap{max: true}
	results := &scoredHeap{max: false}
	heap.Push(candidates, scored{id: g.entryID, sim: entrySim})
	heap.Push(results, scored{id: g.entryID, sim: entrySim})

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(scored)

		// The best unexplored candidate is worse than the worst kept
		// result and the beam is full: the traversal has converged.
		if results.Len() >= ef && current.sim < results.peek().sim {
			break
		}

		node := g.nodes[current.id]
		for _, neighborID := range node.neighbors {
			if _, seen := visited[neighborID]; seen {
				continue
			}
			visited[neighborID] = struct{}{}

			neighbor, ok := g.nodes[neighborID]
			if !ok {
				continue
			}
			sim := cosineSimilarity(query, neighbor.vector, queryNorm, neighbor.norm)

			if results.Len() < ef || sim > results.peek().sim {
				heap.Push(candidates, scored{id: neighborID, sim: sim})
				heap.Push(results, scored{id: neighborID, sim: sim})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]Result, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		s := heap.Pop(results).(scored)
		out[i] = Result{ID: s.id, Similarity: s.sim, Metric: MetricCosine}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessResult(out[i], out[j])
	})
	return out
}

// Search runs the beam and applies the filter to an oversized candidate
// pool so filtered searches keep the backend's recall bound.
func (g *Graph) Search(ctx context.Context, query []float32, k int, filter FilterFunc) ([]Result, error) {
	if err := validateQuery(query, k, g.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ef := g.efSearch
	if ef < k {
		ef = k
	}
	if filter != nil && ef < g.oversample*k {
		ef = g.oversample * k
	}

	queryNorm := vectorNorm(query)

	g.mu.RLock()
	pool := g.beamSearchLocked(query, queryNorm, ef)
	g.mu.RUnlock()

	results := make([]Result, 0, k)
	for _, r := range pool {
		if filter != nil && !filter(r.ID) {
			continue
		}
		results = append(results, r)
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Remove deletes a record and every link pointing at it.
// Idempotent on missing IDs.
func (g *Graph) Remove(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(id)
	return nil
}

// removeLocked must hold the write lock.
func (g *Graph) removeLocked(id string) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)

	for _, node := range g.nodes {
		for i, nid := range node.neighbors {
			if nid == id {
				node.neighbors = append(node.neighbors[:i], node.neighbors[i+1:]...)
				break
			}
		}
	}

	if g.entryID == id {
		g.entryID = ""
		// Smallest remaining ID keeps entry selection deterministic.
		for nid := range g.nodes {
			if g.entryID == "" || nid < g.entryID {
				g.entryID = nid
			}
		}
	}
}

// Snapshot writes a tagged serialization of the indexed vectors.
// Adjacency is not persisted: Load rebuilds the graph by re-inserting,
// which revalidates every vector against the running configuration.
func (g *Graph) Snapshot(w io.Writer) error {
	g.mu.RLock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, Record{ID: id, Vector: g.nodes[id].vector})
	}
	g.mu.RUnlock()

	return writeSnapshot(w, BackendGraph, g.dimension, records)
}

// Load replaces the index contents from a snapshot, rejecting snapshots
// from a different backend or dimension.
func (g *Graph) Load(r io.Reader) error {
	records, err := readSnapshot(r, BackendGraph, g.dimension)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]*graphNode, len(records))
	g.entryID = ""
	for i := range records {
		g.insertLocked(records[i].ID, records[i].Vector)
	}
	return nil
}

// scored is a candidate during beam traversal.
type scored struct {
	id  string
	sim float64
}

// scoredHeap is a binary heap over beam candidates. With max set it pops
// the most similar entry first (frontier); without it, the least similar
// (bounded result set).
type scoredHeap struct {
	items []scored
	max   bool
}

func (h *scoredHeap) Len() int { return len(h.items) }

func (h *scoredHeap) Less(i, j int) bool {
	if h.items[i].sim != h.items[j].sim {
		if h.max {
			return h.items[i].sim > h.items[j].sim
		}
		return h.items[i].sim < h.items[j].sim
	}
	// Equal similarity: ascending ID keeps traversal deterministic.
	return h.items[i].id < h.items[j].id
}

func (h *scoredHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *scoredHeap) Push(x any) { h.items = append(h.items, x.(scored)) }

func (h *scoredHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *scoredHeap) peek() scored { return h.items[0] }
