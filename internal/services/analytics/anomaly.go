package analytics

import (
	"math"
	"time"

	"ValueFlow/pkg/util"
)

// Anomaly marks one series point whose change deviates from the series mean
// change by more than threshold standard deviations.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Change    float64   `json:"change"`
	ZScore    float64   `json:"z_score"`
}

// DetectAnomalies flags outlier changes by z-score. A threshold of 3.0 is
// the conventional default. Series with fewer than three points produce no
// flags: the change distribution is undefined.
func DetectAnomalies(s Series, threshold float64) []Anomaly {
	if threshold <= 0 {
		threshold = 3.0
	}
	chs := changes(s.Values)
	if len(chs) < 2 {
		return nil
	}

	mean := util.Mean(chs)
	std := util.Std(chs)
	if std == 0 {
		return nil
	}

	out := make([]Anomaly, 0, 4)
	for i, ch := range chs {
		z := (ch - mean) / std
		if math.Abs(z) > threshold {
			out = append(out, Anomaly{
				Timestamp: s.Timestamps[i+1],
				Value:     s.Values[i+1],
				Change:    ch,
				ZScore:    z,
			})
		}
	}
	return out
}

// RollingVolatility returns the rolling sample standard deviation of
// fractional changes over the given window, one value per change with a full
// window behind it.
func RollingVolatility(s Series, window int) []float64 {
	chs := changes(s.Values)
	if window < 2 || len(chs) < window {
		return nil
	}
	out := make([]float64, 0, len(chs)-window+1)
	for i := window; i <= len(chs); i++ {
		out = append(out, util.Std(chs[i-window:i]))
	}
	return out
}
