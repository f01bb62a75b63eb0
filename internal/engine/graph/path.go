package graph

import "container/heap"

// CostFunc maps an edge to a non-negative routing cost. Edge weight and cost
// are deliberately decoupled: the same graph serves valuation (weights) and
// reliability routing (e.g. inverse confidence) without duplication.
type CostFunc func(*Edge) float64

// CostWeight routes by the economic value stored on the edge.
func CostWeight(e *Edge) float64 { return e.Weight }

// CostInverseConfidence makes higher-confidence edges cheaper, so the search
// prefers the most reliable chain.
func CostInverseConfidence(e *Edge) float64 { return 1 - e.Confidence }

// ShortestPath runs Dijkstra from source to target using cost per edge.
// Among equal-cost routes the one with fewer hops wins. Returns an empty
// path, not an error, when no path exists.
func (g *ValueGraph) ShortestPath(source, target int64, cost CostFunc) []int64 {
	if cost == nil {
		cost = CostInverseConfidence
	}
	if !g.HasNode(source) || !g.HasNode(target) {
		return nil
	}
	if source == target {
		return []int64{source}
	}

	dist := map[int64]float64{source: 0}
	hops := map[int64]int{source: 0}
	prev := make(map[int64]int64)
	done := make(map[int64]bool)

	pq := &pathQueue{{id: source}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pathItem)
		if done[cur.id] {
			continue
		}
		done[cur.id] = true
		if cur.id == target {
			break
		}

		for _, e := range g.out[cur.id] {
			c := cost(e)
			if c < 0 {
				c = 0
			}
			nd := dist[cur.id] + c
			nh := hops[cur.id] + 1
			d, seen := dist[e.To]
			if !seen || nd < d || (nd == d && nh < hops[e.To]) {
				dist[e.To] = nd
				hops[e.To] = nh
				prev[e.To] = cur.id
				heap.Push(pq, pathItem{id: e.To, cost: nd, hops: nh})
			}
		}
	}

	if !done[target] {
		return nil
	}

	path := []int64{target}
	for at := target; at != source; {
		at = prev[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type pathItem struct {
	id   int64
	cost float64
	hops int
}

type pathQueue []pathItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].hops < q[j].hops
}
func (q pathQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
