package analytics

import "ValueFlow/pkg/util"

// MarketMetrics summarizes the value distribution of one window.
type MarketMetrics struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	Median float64 `json:"median"`
}

// ComputeMarketMetrics is defined (all zero) on an empty series.
func ComputeMarketMetrics(values []float64) MarketMetrics {
	if len(values) == 0 {
		return MarketMetrics{}
	}
	lo, hi := util.MinMax(values)
	return MarketMetrics{
		Count:  len(values),
		Mean:   util.Mean(values),
		Std:    util.Std(values),
		Min:    lo,
		Max:    hi,
		Range:  hi - lo,
		Median: util.Median(values),
	}
}
