// Package resolve computes the implied value of an item relative to the base
// unit by traversing the value graph. Values compose multiplicatively along
// the path (cross-rates are ratios); composed confidence is the minimum edge
// confidence on the path (weakest link).
package resolve

import (
	"sort"
	"time"

	"ValueFlow/internal/domain/models"
	"ValueFlow/internal/engine/graph"
)

// SymbolLookup names items in errors and results.
type SymbolLookup interface {
	SymbolOf(id int64) string
}

type Resolver struct {
	symbols SymbolLookup
}

func New(symbols SymbolLookup) *Resolver {
	return &Resolver{symbols: symbols}
}

// Resolve computes the value of itemID in base units over g. A direct
// base→item edge short-circuits the search; otherwise the highest-confidence
// path wins, with fewer hops breaking ties. No path yields an
// UnreachableItemError; a graph with no edges yields ErrEmptyGraph. Neither
// is ever replaced by a sentinel value.
func (r *Resolver) Resolve(itemID int64, g *graph.ValueGraph) (models.Resolution, error) {
	if g == nil || g.EdgeCount() == 0 {
		return models.Resolution{}, models.ErrEmptyGraph
	}

	baseID := g.BaseID
	res := models.Resolution{
		ItemID:     itemID,
		Symbol:     r.symbols.SymbolOf(itemID),
		BaseID:     baseID,
		BaseSymbol: r.symbols.SymbolOf(baseID),
		Timestamp:  g.WindowEnd,
	}

	if itemID == baseID {
		res.Value = 1
		res.Confidence = 1
		res.Path = []int64{baseID}
		return res, nil
	}

	if e, ok := g.BestEdge(baseID, itemID); ok {
		res.Value = e.Weight
		res.Confidence = e.Confidence
		res.Path = []int64{baseID, itemID}
		if !e.Timestamp.IsZero() {
			res.Timestamp = e.Timestamp
		}
		return res, nil
	}

	path := g.ShortestPath(baseID, itemID, graph.CostInverseConfidence)
	if len(path) == 0 {
		return models.Resolution{}, &models.UnreachableItemError{
			Item: res.Symbol,
			Base: res.BaseSymbol,
		}
	}

	value := 1.0
	confidence := 1.0
	latest := time.Time{}
	for i := 1; i < len(path); i++ {
		e, ok := g.BestEdge(path[i-1], path[i])
		if !ok {
			// Path came from the same adjacency the search used; a missing
			// edge here means the graph was mutated mid-resolve.
			return models.Resolution{}, &models.UnreachableItemError{
				Item: res.Symbol,
				Base: res.BaseSymbol,
			}
		}
		// Rate edges multiply directly; a price edge is the base→item
		// quotient, which contributes the same way on a directed path.
		value *= e.Weight
		if e.Confidence < confidence {
			confidence = e.Confidence
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}

	res.Value = value
	res.Confidence = confidence
	res.Path = path
	if !latest.IsZero() {
		res.Timestamp = latest
	}
	return res, nil
}

// ResolveAll resolves every non-base node in the graph. Unreachable items are
// collected per symbol instead of aborting the window; any other failure is
// returned immediately.
func (r *Resolver) ResolveAll(g *graph.ValueGraph) ([]models.Resolution, map[string]error, error) {
	if g == nil || g.EdgeCount() == 0 {
		return nil, nil, models.ErrEmptyGraph
	}

	ids := g.NodeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.Resolution, 0, len(ids))
	failed := make(map[string]error)
	for _, id := range ids {
		if id == g.BaseID {
			continue
		}
		res, err := r.Resolve(id, g)
		if err != nil {
			failed[r.symbols.SymbolOf(id)] = err
			continue
		}
		out = append(out, res)
	}
	return out, failed, nil
}
