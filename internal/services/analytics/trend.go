package analytics

import (
	"time"

	"ValueFlow/pkg/util"
)

// TrendDirection is the sign of the short/long moving-average crossover.
type TrendDirection int

const (
	TrendDown TrendDirection = -1
	TrendUp   TrendDirection = 1
)

// TrendPoint carries both moving averages and the crossover direction at one
// instant. Points earlier than the long window are omitted.
type TrendPoint struct {
	Timestamp time.Time      `json:"timestamp"`
	ShortMA   float64        `json:"short_ma"`
	LongMA    float64        `json:"long_ma"`
	Direction TrendDirection `json:"trend"`
}

// TrendIndicators computes the moving-average crossover signal: direction is
// up while the short MA sits at or above the long MA, down otherwise.
func TrendIndicators(s Series, shortWindow, longWindow int) []TrendPoint {
	if shortWindow <= 0 || longWindow <= 0 || shortWindow > longWindow {
		return nil
	}
	if s.Len() < longWindow {
		return nil
	}

	out := make([]TrendPoint, 0, s.Len()-longWindow+1)
	for i := longWindow - 1; i < s.Len(); i++ {
		shortMA := util.Mean(s.Values[i-shortWindow+1 : i+1])
		longMA := util.Mean(s.Values[i-longWindow+1 : i+1])
		dir := TrendDown
		if shortMA >= longMA {
			dir = TrendUp
		}
		out = append(out, TrendPoint{
			Timestamp: s.Timestamps[i],
			ShortMA:   shortMA,
			LongMA:    longMA,
			Direction: dir,
		})
	}
	return out
}
