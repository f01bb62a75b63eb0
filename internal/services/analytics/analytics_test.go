package analytics

import (
	"math"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
)

func series(values ...float64) Series {
	s := Series{ItemID: 1}
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		s.Timestamps = append(s.Timestamps, base.AddDate(0, 0, i))
		s.Values = append(s.Values, v)
	}
	return s
}

func TestFromMergedPointsSortsAndFilters(t *testing.T) {
	t1 := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	pts := []models.MergedPoint{
		{Observation: models.Observation{ItemID: 1, Value: 11, Timestamp: t1, Kind: models.KindPrice}},
		{Observation: models.Observation{ItemID: 1, Value: 10, Timestamp: t0, Kind: models.KindPrice}},
		{Observation: models.Observation{ItemID: 2, Value: 99, Timestamp: t0, Kind: models.KindPrice}},
		{Observation: models.Observation{ItemID: 1, CounterItemID: 2, Value: 1.5, Timestamp: t0, Kind: models.KindRate}},
	}
	s := FromMergedPoints(pts, 1)
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.Values[0] != 10 || s.Values[1] != 11 {
		t.Fatalf("series not sorted: %v", s.Values)
	}
}

func TestTrendCrossover(t *testing.T) {
	// Rising series: short MA leads the long MA upward.
	s := series(1, 2, 3, 4, 5, 6, 7, 8)
	pts := TrendIndicators(s, 2, 4)
	if len(pts) != 5 {
		t.Fatalf("points = %d, want 5", len(pts))
	}
	for _, p := range pts {
		if p.Direction != TrendUp {
			t.Fatalf("rising series must trend up, got %+v", p)
		}
	}

	// Falling series trends down.
	down := TrendIndicators(series(8, 7, 6, 5, 4, 3, 2, 1), 2, 4)
	for _, p := range down {
		if p.Direction != TrendDown {
			t.Fatalf("falling series must trend down, got %+v", p)
		}
	}
}

func TestTrendInsufficientData(t *testing.T) {
	if pts := TrendIndicators(series(1, 2), 2, 4); pts != nil {
		t.Fatalf("expected nil for short series, got %v", pts)
	}
	if pts := TrendIndicators(series(1, 2, 3, 4, 5), 4, 2); pts != nil {
		t.Fatalf("expected nil for inverted windows, got %v", pts)
	}
}

func TestDetectAnomaliesFlagsSpike(t *testing.T) {
	// Steady 1% drift with one large shock.
	vals := []float64{100}
	for i := 0; i < 20; i++ {
		vals = append(vals, vals[len(vals)-1]*1.01)
	}
	vals = append(vals, vals[len(vals)-1]*2.0) // +100% shock
	vals = append(vals, vals[len(vals)-1]*1.01)

	anoms := DetectAnomalies(series(vals...), 3.0)
	if len(anoms) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(anoms))
	}
	if anoms[0].ZScore <= 3.0 {
		t.Fatalf("z-score = %v, want > 3", anoms[0].ZScore)
	}
}

func TestDetectAnomaliesQuietSeries(t *testing.T) {
	if anoms := DetectAnomalies(series(100, 101, 102, 103), 3.0); len(anoms) != 0 {
		t.Fatalf("smooth series must have no anomalies, got %v", anoms)
	}
	if anoms := DetectAnomalies(series(100, 100), 3.0); anoms != nil {
		t.Fatalf("two points cannot be scored, got %v", anoms)
	}
}

func TestRollingVolatility(t *testing.T) {
	vols := RollingVolatility(series(100, 110, 99, 120, 100, 130), 3)
	if len(vols) != 3 {
		t.Fatalf("vols = %d, want 3", len(vols))
	}
	for _, v := range vols {
		if v <= 0 {
			t.Fatalf("expected positive volatility, got %v", vols)
		}
	}
	if RollingVolatility(series(1, 2), 3) != nil {
		t.Fatalf("expected nil below window")
	}
}

func TestMarketMetrics(t *testing.T) {
	m := ComputeMarketMetrics([]float64{1, 2, 3, 4})
	if m.Count != 4 || m.Mean != 2.5 || m.Min != 1 || m.Max != 4 || m.Range != 3 || m.Median != 2.5 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if std := m.Std; math.Abs(std-1.2909944487358056) > 1e-12 {
		t.Fatalf("std = %v", std)
	}

	empty := ComputeMarketMetrics(nil)
	if empty != (MarketMetrics{}) {
		t.Fatalf("empty metrics must be zero, got %+v", empty)
	}
}
