// Package graph builds the directed, attributed value graph for a time
// window: nodes are items, edges carry price/rate observations, and derived
// node attributes (volatility, degree, centrality) are recomputed on every
// build.
package graph

import (
	"time"

	"ValueFlow/internal/domain/models"
)

// Edge is one qualifying observation lifted into the graph. Weight holds the
// economic value (price or rate); routing cost is a separate, caller-chosen
// transform of the edge attributes.
type Edge struct {
	From       int64
	To         int64
	Weight     float64
	Timestamp  time.Time
	Source     string
	Confidence float64
	Kind       models.ObservationKind
}

// NodeAttributes are derived per node on every build.
type NodeAttributes struct {
	Volatility float64 `json:"volatility"`
	InDegree   int     `json:"in_degree"`
	OutDegree  int     `json:"out_degree"`
	Centrality float64 `json:"centrality"`
}

// ValueGraph is the value relationship graph for one window. It is rebuilt
// wholesale per window; there is no incremental edge mutation.
type ValueGraph struct {
	BaseID      int64
	WindowStart time.Time
	WindowEnd   time.Time

	nodes map[int64]*NodeAttributes
	out   map[int64][]*Edge
	in    map[int64][]*Edge
	edges []*Edge
}

// Builder constructs value graphs. One builder may serve many windows; each
// Build returns an independent graph.
type Builder struct {
	baseID int64
	pr     PageRankConfig
}

// PageRankConfig tunes the centrality iteration.
type PageRankConfig struct {
	Teleport  float64 // teleport probability; damping is 1-Teleport
	MaxIter   int
	Tolerance float64
}

// DefaultPageRank matches the conventional teleport of 0.15.
var DefaultPageRank = PageRankConfig{Teleport: 0.15, MaxIter: 100, Tolerance: 1e-9}

type BuilderOption func(*Builder)

// WithPageRank overrides the centrality configuration.
func WithPageRank(cfg PageRankConfig) BuilderOption {
	return func(b *Builder) {
		if cfg.Teleport > 0 && cfg.Teleport < 1 {
			b.pr.Teleport = cfg.Teleport
		}
		if cfg.MaxIter > 0 {
			b.pr.MaxIter = cfg.MaxIter
		}
		if cfg.Tolerance > 0 {
			b.pr.Tolerance = cfg.Tolerance
		}
	}
}

// NewBuilder creates a builder anchored at the given base node.
func NewBuilder(baseID int64, opts ...BuilderOption) *Builder {
	b := &Builder{baseID: baseID, pr: DefaultPageRank}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build filters observations to the window and confidence threshold and
// assembles a fresh graph: one node per referenced item, one edge per
// qualifying observation. Price observations become base→item edges; rate
// observations become source→target edges. Same-instant duplicates are kept
// as-is; deduplication is the store's job, performed upstream.
func (b *Builder) Build(obs []models.Observation, start, end time.Time, minConfidence float64) *ValueGraph {
	g := &ValueGraph{
		BaseID:      b.baseID,
		WindowStart: start,
		WindowEnd:   end,
		nodes:       make(map[int64]*NodeAttributes),
		out:         make(map[int64][]*Edge),
		in:          make(map[int64][]*Edge),
	}

	for _, o := range obs {
		if o.Confidence < minConfidence {
			continue
		}
		if o.Timestamp.Before(start) || o.Timestamp.After(end) {
			continue
		}

		e := &Edge{
			Weight:     o.Value,
			Timestamp:  o.Timestamp,
			Source:     o.Source,
			Confidence: o.Confidence,
			Kind:       o.Kind,
		}
		switch o.Kind {
		case models.KindRate:
			e.From, e.To = o.ItemID, o.CounterItemID
		default:
			e.From, e.To = b.baseID, o.ItemID
		}
		g.addEdge(e)
	}

	g.ComputeNodeAttributes(b.pr)
	return g
}

func (g *ValueGraph) addEdge(e *Edge) {
	g.ensureNode(e.From)
	g.ensureNode(e.To)
	g.out[e.From] = append(g.out[e.From], e)
	g.in[e.To] = append(g.in[e.To], e)
	g.edges = append(g.edges, e)
}

func (g *ValueGraph) ensureNode(id int64) {
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &NodeAttributes{}
	}
}

// NodeCount returns the number of nodes.
func (g *ValueGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *ValueGraph) EdgeCount() int { return len(g.edges) }

// HasNode reports whether id is present in the current window.
func (g *ValueGraph) HasNode(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the derived attributes for id.
func (g *ValueGraph) Node(id int64) (NodeAttributes, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return NodeAttributes{}, false
	}
	return *n, true
}

// NodeIDs returns all node identifiers in unspecified order.
func (g *ValueGraph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	return ids
}

// OutEdges returns the outgoing edges of id.
func (g *ValueGraph) OutEdges(id int64) []*Edge { return g.out[id] }

// InEdges returns the incoming edges of id.
func (g *ValueGraph) InEdges(id int64) []*Edge { return g.in[id] }

// BestEdge returns the highest-confidence edge from→to, if any.
func (g *ValueGraph) BestEdge(from, to int64) (*Edge, bool) {
	var best *Edge
	for _, e := range g.out[from] {
		if e.To != to {
			continue
		}
		if best == nil || e.Confidence > best.Confidence {
			best = e
		}
	}
	return best, best != nil
}

// Edges returns all edges. Callers must not mutate them.
func (g *ValueGraph) Edges() []*Edge { return g.edges }
