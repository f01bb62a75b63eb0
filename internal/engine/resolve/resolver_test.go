package resolve

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
	"ValueFlow/internal/engine/graph"
)

const baseID = int64(100)

type symbolMap map[int64]string

func (m symbolMap) SymbolOf(id int64) string {
	if s, ok := m[id]; ok {
		return s
	}
	return "#" + strconv.FormatInt(id, 10)
}

var symbols = symbolMap{baseID: "SVU", 1: "USD", 2: "EUR", 3: "GBP", 7: "GOLD"}

func at(day int) time.Time {
	return time.Date(2025, 3, day, 12, 0, 0, 0, time.UTC)
}

func priceObs(item int64, v, conf float64) models.Observation {
	return models.Observation{ItemID: item, Value: v, Timestamp: at(1), Source: "test", Confidence: conf, Kind: models.KindPrice}
}

func rateObs(src, dst int64, v, conf float64) models.Observation {
	return models.Observation{ItemID: src, CounterItemID: dst, Value: v, Timestamp: at(1), Source: "test", Confidence: conf, Kind: models.KindRate}
}

func build(obs ...models.Observation) *graph.ValueGraph {
	return graph.NewBuilder(baseID).Build(obs, at(0), at(2), 0)
}

func TestResolveDirectEdgeRoundTrip(t *testing.T) {
	g := build(priceObs(7, 5.0, 0.85))
	res, err := New(symbols).Resolve(7, g)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 5.0 || res.Confidence != 0.85 {
		t.Fatalf("got value=%v conf=%v, want 5.0/0.85", res.Value, res.Confidence)
	}
	if len(res.Path) != 2 || res.Path[0] != baseID || res.Path[1] != 7 {
		t.Fatalf("path = %v, want [base item]", res.Path)
	}
}

func TestResolveComposesMultiplicatively(t *testing.T) {
	// SVU -> USD = 2.0, USD -> EUR = 0.5 => SVU -> EUR = 1.0
	g := build(
		priceObs(1, 2.0, 0.9),
		rateObs(1, 2, 0.5, 0.8),
	)
	res, err := New(symbols).Resolve(2, g)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if math.Abs(res.Value-1.0) > 1e-12 {
		t.Fatalf("value = %v, want 1.0", res.Value)
	}
	if len(res.Path) != 3 {
		t.Fatalf("path = %v, want 3 nodes", res.Path)
	}
}

func TestResolveWeakestLinkConfidence(t *testing.T) {
	g := build(
		priceObs(1, 2.0, 0.95),
		rateObs(1, 2, 0.5, 0.6),
		rateObs(2, 3, 3.0, 0.9),
	)
	res, err := New(symbols).Resolve(3, g)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Composed confidence equals min over path edge confidences.
	min := 1.0
	for i := 1; i < len(res.Path); i++ {
		e, ok := g.BestEdge(res.Path[i-1], res.Path[i])
		if !ok {
			t.Fatalf("path edge %d missing", i)
		}
		if e.Confidence < min {
			min = e.Confidence
		}
	}
	if res.Confidence != min {
		t.Fatalf("confidence = %v, want weakest link %v", res.Confidence, min)
	}
	if res.Confidence != 0.6 {
		t.Fatalf("confidence = %v, want 0.6", res.Confidence)
	}
}

func TestResolveUnreachableNamesBothItems(t *testing.T) {
	g := build(
		priceObs(1, 2.0, 0.9),
		rateObs(7, 3, 1.0, 0.9), // GOLD island, unreachable from base
	)
	_, err := New(symbols).Resolve(7, g)
	var uerr *models.UnreachableItemError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UnreachableItemError, got %v", err)
	}
	if uerr.Item != "GOLD" || uerr.Base != "SVU" {
		t.Fatalf("error must name both symbols: %+v", uerr)
	}
}

func TestResolveEmptyGraph(t *testing.T) {
	g := build()
	_, err := New(symbols).Resolve(1, g)
	if !errors.Is(err, models.ErrEmptyGraph) {
		t.Fatalf("expected ErrEmptyGraph, got %v", err)
	}
}

func TestResolveBaseIsIdentity(t *testing.T) {
	g := build(priceObs(1, 2.0, 0.9))
	res, err := New(symbols).Resolve(baseID, g)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Value != 1 || res.Confidence != 1 || len(res.Path) != 1 {
		t.Fatalf("base must resolve to identity, got %+v", res)
	}
}

func TestResolveAllCollectsFailures(t *testing.T) {
	g := build(
		priceObs(1, 2.0, 0.9),
		rateObs(1, 2, 0.5, 0.8),
		rateObs(7, 3, 1.0, 0.9), // island
	)
	res, failed, err := New(symbols).ResolveAll(g)
	if err != nil {
		t.Fatalf("resolve all: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("resolved = %d, want 2 (USD, EUR)", len(res))
	}
	if len(failed) != 2 {
		t.Fatalf("failed = %v, want GOLD and GBP", failed)
	}
	var uerr *models.UnreachableItemError
	if !errors.As(failed["GOLD"], &uerr) {
		t.Fatalf("expected unreachable GOLD, got %v", failed["GOLD"])
	}
}

func TestResolveTimestampFollowsEdges(t *testing.T) {
	// Direct and multi-hop resolutions both carry the observation time of
	// the (latest) edge on the path, not the window boundary.
	g := build(
		priceObs(7, 5.0, 0.85),
		priceObs(1, 2.0, 0.9),
		rateObs(1, 2, 0.5, 0.8),
	)

	direct, err := New(symbols).Resolve(7, g)
	if err != nil {
		t.Fatalf("resolve direct: %v", err)
	}
	if !direct.Timestamp.Equal(at(1)) {
		t.Fatalf("direct timestamp = %v, want %v", direct.Timestamp, at(1))
	}

	hop, err := New(symbols).Resolve(2, g)
	if err != nil {
		t.Fatalf("resolve multi-hop: %v", err)
	}
	if !hop.Timestamp.Equal(direct.Timestamp) {
		t.Fatalf("multi-hop timestamp = %v, direct = %v; both must come from edges", hop.Timestamp, direct.Timestamp)
	}
}
