package usecase

import (
	"fmt"

	"ValueFlow/internal/services/analytics"
)

// analytics accessors operate on the merged points of the most recent window.

// TrendFor computes moving-average crossover trend points for one item.
func (p *WindowProcessor) TrendFor(symbol string, shortWindow, longWindow int) ([]analytics.TrendPoint, error) {
	if shortWindow <= 0 {
		shortWindow = p.settings.ShortWindow
	}
	if longWindow <= 0 {
		longWindow = p.settings.LongWindow
	}
	s, err := p.seriesFor(symbol)
	if err != nil {
		return nil, err
	}
	return analytics.TrendIndicators(s, shortWindow, longWindow), nil
}

// AnomaliesFor flags z-score outliers in an item's fractional changes.
func (p *WindowProcessor) AnomaliesFor(symbol string, threshold float64) ([]analytics.Anomaly, error) {
	if threshold <= 0 {
		threshold = p.settings.AnomalyThreshold
	}
	s, err := p.seriesFor(symbol)
	if err != nil {
		return nil, err
	}
	return analytics.DetectAnomalies(s, threshold), nil
}

// VolatilityFor computes an item's rolling volatility of fractional changes.
func (p *WindowProcessor) VolatilityFor(symbol string, window int) ([]float64, error) {
	if window <= 0 {
		window = p.settings.VolWindow
	}
	s, err := p.seriesFor(symbol)
	if err != nil {
		return nil, err
	}
	return analytics.RollingVolatility(s, window), nil
}

// MarketMetrics summarizes the value distribution of the latest resolutions.
func (p *WindowProcessor) MarketMetrics() analytics.MarketMetrics {
	res := p.LastResult()
	if res == nil {
		return analytics.MarketMetrics{}
	}
	values := make([]float64, 0, len(res.Resolutions))
	for _, r := range res.Resolutions {
		values = append(values, r.Value)
	}
	return analytics.ComputeMarketMetrics(values)
}

func (p *WindowProcessor) seriesFor(symbol string) (analytics.Series, error) {
	it, ok := p.reg.Lookup(symbol)
	if !ok {
		return analytics.Series{}, fmt.Errorf("unknown item: %s", symbol)
	}
	return analytics.FromMergedPoints(p.LastMerged(), it.ID), nil
}
