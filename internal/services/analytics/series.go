// Package analytics computes supplementary signals over merged value series:
// moving-average trend, z-score anomalies, rolling volatility, and window
// market metrics. Everything operates on immutable series snapshots.
package analytics

import (
	"sort"
	"time"

	"ValueFlow/internal/domain/models"
)

// Series is one item's merged value series, ordered by timestamp.
type Series struct {
	ItemID     int64
	Timestamps []time.Time
	Values     []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Values) }

// FromMergedPoints extracts the price series of one item from a merged
// window, sorted by timestamp.
func FromMergedPoints(points []models.MergedPoint, itemID int64) Series {
	type pt struct {
		t time.Time
		v float64
	}
	pts := make([]pt, 0, 16)
	for _, p := range points {
		if p.ItemID != itemID || p.Kind != models.KindPrice {
			continue
		}
		pts = append(pts, pt{t: p.Timestamp, v: p.Value})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })

	s := Series{ItemID: itemID}
	for _, p := range pts {
		s.Timestamps = append(s.Timestamps, p.t)
		s.Values = append(s.Values, p.v)
	}
	return s
}

// changes returns period-over-period fractional changes, one per point after
// the first. A zero previous value contributes a zero change.
func changes(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}
