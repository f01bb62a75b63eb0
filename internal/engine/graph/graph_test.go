package graph

import (
	"math"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
)

const baseID = int64(100)

func at(day int) time.Time {
	return time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
}

func priceObs(item int64, v, conf float64, t time.Time) models.Observation {
	return models.Observation{ItemID: item, Value: v, Timestamp: t, Source: "test", Confidence: conf, Kind: models.KindPrice}
}

func rateObs(src, dst int64, v, conf float64, t time.Time) models.Observation {
	return models.Observation{ItemID: src, CounterItemID: dst, Value: v, Timestamp: t, Source: "test", Confidence: conf, Kind: models.KindRate}
}

func TestBuildEdgesAndNodes(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		priceObs(1, 5.0, 0.9, at(1)),
		rateObs(1, 2, 0.5, 0.8, at(1)),
	}, at(0), at(2), 0.5)

	if g.NodeCount() != 3 {
		t.Fatalf("nodes = %d, want 3 (base + 2 items)", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("edges = %d, want 2", g.EdgeCount())
	}
	e, ok := g.BestEdge(baseID, 1)
	if !ok || e.Kind != models.KindPrice || e.Weight != 5.0 {
		t.Fatalf("expected price edge base->1, got %+v", e)
	}
	if _, ok := g.BestEdge(1, 2); !ok {
		t.Fatalf("expected rate edge 1->2")
	}
}

func TestBuildFiltersWindowAndConfidence(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		priceObs(1, 5.0, 0.9, at(1)),
		priceObs(2, 5.0, 0.3, at(1)),  // below threshold
		priceObs(3, 5.0, 0.9, at(10)), // outside window
	}, at(0), at(2), 0.5)

	if g.EdgeCount() != 1 {
		t.Fatalf("edges = %d, want 1", g.EdgeCount())
	}
	if g.HasNode(2) || g.HasNode(3) {
		t.Fatalf("filtered items must not appear as nodes")
	}
}

func TestBuildKeepsParallelEdges(t *testing.T) {
	// Same (timestamp, pair): dedup is the store's job, not the builder's.
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		priceObs(1, 5.0, 0.9, at(1)),
		priceObs(1, 5.1, 0.8, at(1)),
	}, at(0), at(2), 0)
	if g.EdgeCount() != 2 {
		t.Fatalf("edges = %d, want 2 parallel edges", g.EdgeCount())
	}
}

func TestRebuildReplacesState(t *testing.T) {
	b := NewBuilder(baseID)
	g1 := b.Build([]models.Observation{priceObs(1, 5.0, 0.9, at(1))}, at(0), at(2), 0)
	g2 := b.Build(nil, at(3), at(4), 0)
	if g1.EdgeCount() != 1 {
		t.Fatalf("first graph mutated by rebuild")
	}
	if g2.EdgeCount() != 0 || g2.NodeCount() != 0 {
		t.Fatalf("rebuild must start empty, got %d nodes", g2.NodeCount())
	}
}

func TestNodeAttributes(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		priceObs(1, 10.0, 0.9, at(1)),
		rateObs(1, 2, 20.0, 0.9, at(1)),
	}, at(0), at(2), 0)

	n, ok := g.Node(1)
	if !ok {
		t.Fatalf("node 1 missing")
	}
	if n.InDegree != 1 || n.OutDegree != 1 {
		t.Fatalf("degrees = %d/%d, want 1/1", n.InDegree, n.OutDegree)
	}
	// incident weights {10, 20}: mean 15, sample std sqrt(50) -> cv ~0.4714
	wantCV := math.Sqrt(50) / 15
	if math.Abs(n.Volatility-wantCV) > 1e-9 {
		t.Fatalf("volatility = %v, want %v", n.Volatility, wantCV)
	}

	// A node with a single incident edge has volatility 0.
	n2, _ := g.Node(2)
	if n2.Volatility != 0 {
		t.Fatalf("sparse node volatility = %v, want 0", n2.Volatility)
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		rateObs(1, 2, 1.0, 0.9, at(1)),
		rateObs(2, 3, 1.0, 0.9, at(1)),
		rateObs(3, 1, 1.0, 0.9, at(1)),
	}, at(0), at(2), 0)

	sum := 0.0
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		sum += n.Centrality
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("pagerank sum = %v, want 1", sum)
	}
}

func TestPageRankFavorsSink(t *testing.T) {
	b := NewBuilder(baseID)
	// Everything points at node 9.
	g := b.Build([]models.Observation{
		rateObs(1, 9, 1.0, 0.9, at(1)),
		rateObs(2, 9, 1.0, 0.9, at(1)),
		rateObs(3, 9, 1.0, 0.9, at(1)),
	}, at(0), at(2), 0)

	top := g.CentralNodes(1)
	if len(top) != 1 || top[0].ItemID != 9 {
		t.Fatalf("expected node 9 most central, got %+v", top)
	}
}

func TestVolatileNodesThreshold(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		priceObs(1, 10.0, 0.9, at(1)),
		priceObs(1, 30.0, 0.9, at(2)), // spread -> volatile
		priceObs(2, 10.0, 0.9, at(1)),
		priceObs(2, 10.0, 0.9, at(2)), // flat
	}, at(0), at(3), 0)

	vol := g.VolatileNodes(0.1, 10)
	if len(vol) == 0 || vol[0].ItemID != 1 {
		t.Fatalf("expected item 1 most volatile, got %+v", vol)
	}
	for _, ns := range vol {
		if ns.ItemID == 2 {
			t.Fatalf("flat item 2 must not rank as volatile: %+v", vol)
		}
	}
}

func TestShortestPathPrefersConfidence(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		rateObs(1, 2, 1.0, 0.5, at(1)), // direct but weak
		rateObs(1, 3, 1.0, 0.95, at(1)),
		rateObs(3, 2, 1.0, 0.95, at(1)), // two strong hops: cost 0.1 < 0.5
	}, at(0), at(2), 0)

	path := g.ShortestPath(1, 2, CostInverseConfidence)
	want := []int64{1, 3, 2}
	if len(path) != 3 || path[0] != want[0] || path[1] != want[1] || path[2] != want[2] {
		t.Fatalf("path = %v, want %v", path, want)
	}
}

func TestShortestPathTieBreaksByHops(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		rateObs(1, 2, 1.0, 0.8, at(1)), // one hop, cost 0.2
		rateObs(1, 3, 1.0, 0.9, at(1)),
		rateObs(3, 2, 1.0, 0.9, at(1)), // two hops, cost 0.2
	}, at(0), at(2), 0)

	path := g.ShortestPath(1, 2, CostInverseConfidence)
	if len(path) != 2 {
		t.Fatalf("equal cost must prefer fewer hops, got %v", path)
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	b := NewBuilder(baseID)
	g := b.Build([]models.Observation{
		rateObs(1, 2, 1.0, 0.9, at(1)),
		rateObs(3, 4, 1.0, 0.9, at(1)),
	}, at(0), at(2), 0)

	if path := g.ShortestPath(1, 4, nil); len(path) != 0 {
		t.Fatalf("expected empty path, got %v", path)
	}
	// Direction matters: rate edges are directed.
	if path := g.ShortestPath(2, 1, nil); len(path) != 0 {
		t.Fatalf("expected empty reverse path, got %v", path)
	}
}
