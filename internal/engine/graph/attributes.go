package graph

import (
	"math"
	"sort"

	"ValueFlow/pkg/util"
)

// ComputeNodeAttributes recomputes volatility, degrees, and centrality for
// every node. Volatility is the coefficient of variation of all incident
// edge weights (both directions), defined as 0 when fewer than two incident
// edges exist.
func (g *ValueGraph) ComputeNodeAttributes(pr PageRankConfig) {
	for id, attrs := range g.nodes {
		inE, outE := g.in[id], g.out[id]
		attrs.InDegree = len(inE)
		attrs.OutDegree = len(outE)

		weights := make([]float64, 0, len(inE)+len(outE))
		for _, e := range inE {
			weights = append(weights, e.Weight)
		}
		for _, e := range outE {
			weights = append(weights, e.Weight)
		}
		attrs.Volatility = 0
		if len(weights) >= 2 {
			if m := util.Mean(weights); m != 0 {
				attrs.Volatility = util.Std(weights) / m
			}
		}
	}

	g.computePageRank(pr)
}

// computePageRank runs the standard power iteration over the directed graph,
// stopping at MaxIter or when the L1 delta drops below Tolerance, whichever
// comes first. Dangling mass is redistributed uniformly.
func (g *ValueGraph) computePageRank(cfg PageRankConfig) {
	n := len(g.nodes)
	if n == 0 {
		return
	}
	if cfg.Teleport <= 0 || cfg.Teleport >= 1 {
		cfg.Teleport = DefaultPageRank.Teleport
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultPageRank.MaxIter
	}
	damping := 1 - cfg.Teleport

	rank := make(map[int64]float64, n)
	for id := range g.nodes {
		rank[id] = 1.0 / float64(n)
	}

	for iter := 0; iter < cfg.MaxIter; iter++ {
		next := make(map[int64]float64, n)
		dangling := 0.0
		for id, r := range rank {
			outE := g.out[id]
			if len(outE) == 0 {
				dangling += r
				continue
			}
			share := r / float64(len(outE))
			for _, e := range outE {
				next[e.To] += share
			}
		}

		base := cfg.Teleport/float64(n) + damping*dangling/float64(n)
		delta := 0.0
		for id := range g.nodes {
			v := base + damping*next[id]
			delta += math.Abs(v - rank[id])
			rank[id] = v
		}
		if cfg.Tolerance > 0 && delta < cfg.Tolerance {
			break
		}
	}

	for id, attrs := range g.nodes {
		attrs.Centrality = rank[id]
	}
}

// NodeScore pairs a node with one of its ranking scores.
type NodeScore struct {
	ItemID int64   `json:"item_id"`
	Score  float64 `json:"score"`
}

// CentralNodes returns up to topN nodes by descending centrality. Pure read
// over the attributes computed at build time.
func (g *ValueGraph) CentralNodes(topN int) []NodeScore {
	scores := make([]NodeScore, 0, len(g.nodes))
	for id, attrs := range g.nodes {
		scores = append(scores, NodeScore{ItemID: id, Score: attrs.Centrality})
	}
	return topScores(scores, topN)
}

// VolatileNodes returns up to topN nodes whose volatility meets threshold,
// most volatile first.
func (g *ValueGraph) VolatileNodes(threshold float64, topN int) []NodeScore {
	scores := make([]NodeScore, 0, len(g.nodes))
	for id, attrs := range g.nodes {
		if attrs.Volatility >= threshold {
			scores = append(scores, NodeScore{ItemID: id, Score: attrs.Volatility})
		}
	}
	return topScores(scores, topN)
}

func topScores(scores []NodeScore, topN int) []NodeScore {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ItemID < scores[j].ItemID
	})
	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}
	return scores
}
