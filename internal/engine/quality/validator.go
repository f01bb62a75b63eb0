// Package quality checks observation batches for completeness, internal
// consistency, and sampling defects before they are trusted downstream.
// Every check is a pure function of its inputs: nothing here mutates the
// store, so a batch can be re-validated after corrections.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"ValueFlow/internal/domain/models"
)

// reciprocalTolerance bounds |rate(A→B)·rate(B→A) − 1| for a consistent pair.
const reciprocalTolerance = 0.01

// ValidatePrices checks a batch of price records against value bounds and a
// maximum per-item sampling gap. Gaps are reported but do not reduce the
// valid count; downstream treats them as a signal, not a rejection.
func ValidatePrices(records []models.RawRecord, minValue, maxValue float64, maxGap time.Duration) models.ValidationReport {
	return validateRecords(records, minValue, maxValue, maxGap, false)
}

// ValidateRates is ValidatePrices applied per (source_item, target_item)
// pair instead of per item.
func ValidateRates(records []models.RawRecord, minRate, maxRate float64, maxGap time.Duration) models.ValidationReport {
	return validateRecords(records, minRate, maxRate, maxGap, true)
}

func validateRecords(records []models.RawRecord, minV, maxV float64, maxGap time.Duration, rates bool) models.ValidationReport {
	rep := models.ValidationReport{TotalRecords: len(records)}

	seen := make(map[string]bool, len(records))
	series := make(map[seriesKey][]time.Time)

	for _, r := range records {
		missing := missingFields(r, rates)
		rep.MissingValues += missing
		if missing > 0 {
			continue
		}

		if *r.Value < minV || *r.Value > maxV {
			rep.OutOfRange++
		}

		if k := rowKey(r, rates); seen[k] {
			rep.Duplicates++
		} else {
			seen[k] = true
		}

		sk := seriesKeyOf(r, rates)
		series[sk] = append(series[sk], r.Timestamp.UTC())
	}

	if maxGap > 0 {
		for _, stamps := range series {
			sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
			for i := 1; i < len(stamps); i++ {
				if stamps[i].Sub(stamps[i-1]) > maxGap {
					rep.LargeGaps++
				}
			}
		}
	}

	rep.ValidRecords = rep.TotalRecords - rep.MissingValues - rep.OutOfRange - rep.Duplicates
	if rep.ValidRecords < 0 {
		rep.ValidRecords = 0
	}
	rep.InvalidRecords = rep.TotalRecords - rep.ValidRecords
	rep.Passed = rep.ValidRecords > 0 && rep.InvalidRecords == 0
	return rep
}

func missingFields(r models.RawRecord, rates bool) int {
	n := 0
	if r.Timestamp == nil {
		n++
	}
	if r.Value == nil || math.IsNaN(*r.Value) {
		n++
	}
	if rates {
		if r.SourceItemID == nil {
			n++
		}
		if r.TargetItemID == nil {
			n++
		}
	} else if r.ItemID == nil {
		n++
	}
	return n
}

type seriesKey struct {
	a, b int64
}

func seriesKeyOf(r models.RawRecord, rates bool) seriesKey {
	if rates {
		return seriesKey{*r.SourceItemID, *r.TargetItemID}
	}
	return seriesKey{*r.ItemID, 0}
}

func rowKey(r models.RawRecord, rates bool) string {
	k := seriesKeyOf(r, rates)
	return fmt.Sprintf("%d|%d|%d|%g", k.a, k.b, r.Timestamp.UnixNano(), *r.Value)
}

// ValidateConsistency flags reciprocal rate pairs whose product deviates from
// 1.0 beyond tolerance, and counts items that appear in rates but never in
// prices. Pairs are indexed by (source, target) key so the check touches only
// pairs that actually occur.
func ValidateConsistency(prices, rates []models.RawRecord) models.ConsistencyReport {
	priceItems := make(map[int64]bool)
	for _, p := range prices {
		if p.ItemID != nil {
			priceItems[*p.ItemID] = true
		}
	}

	byPair := make(map[seriesKey][]float64)
	rateItems := make(map[int64]bool)
	for _, r := range rates {
		if r.SourceItemID == nil || r.TargetItemID == nil || r.Value == nil {
			continue
		}
		byPair[seriesKey{*r.SourceItemID, *r.TargetItemID}] = append(byPair[seriesKey{*r.SourceItemID, *r.TargetItemID}], *r.Value)
		rateItems[*r.SourceItemID] = true
		rateItems[*r.TargetItemID] = true
	}

	rep := models.ConsistencyReport{
		TotalItems:     len(priceItems),
		TotalRatePairs: len(byPair),
	}
	for id := range rateItems {
		if !priceItems[id] {
			rep.MissingItems++
		}
	}

	for pair, direct := range byPair {
		if pair.a >= pair.b {
			continue // visit each unordered pair once, from its ordered side
		}
		reverse, ok := byPair[seriesKey{pair.b, pair.a}]
		if !ok {
			continue
		}
		for _, d := range direct {
			for _, rv := range reverse {
				if math.Abs(d*rv-1.0) > reciprocalTolerance {
					rep.InconsistentRates++
				}
			}
		}
	}

	rep.Passed = rep.MissingItems == 0 && rep.InconsistentRates == 0
	return rep
}

// ValidateCompleteness builds the expected timestamp grid at frequency over
// [start, end] and counts expected-but-unobserved periods per price item and
// per rate pair.
func ValidateCompleteness(prices, rates []models.RawRecord, start, end time.Time, frequency time.Duration) models.CompletenessReport {
	rep := models.CompletenessReport{}
	if frequency <= 0 || end.Before(start) {
		return rep
	}

	expected := make([]int64, 0, 64)
	for t := start.UTC(); !t.After(end.UTC()); t = t.Add(frequency) {
		expected = append(expected, t.UnixNano())
	}
	rep.TotalPeriods = len(expected)

	rep.MissingPricePeriods = missingPeriods(prices, false, expected)
	rep.MissingRatePeriods = missingPeriods(rates, true, expected)
	rep.Passed = rep.MissingPricePeriods == 0 && rep.MissingRatePeriods == 0
	return rep
}

func missingPeriods(records []models.RawRecord, rates bool, expected []int64) int {
	observed := make(map[seriesKey]map[int64]bool)
	for _, r := range records {
		if r.Timestamp == nil {
			continue
		}
		if rates && (r.SourceItemID == nil || r.TargetItemID == nil) {
			continue
		}
		if !rates && r.ItemID == nil {
			continue
		}
		sk := seriesKeyOf(r, rates)
		if observed[sk] == nil {
			observed[sk] = make(map[int64]bool)
		}
		observed[sk][r.Timestamp.UTC().UnixNano()] = true
	}

	missing := 0
	for _, stamps := range observed {
		for _, want := range expected {
			if !stamps[want] {
				missing++
			}
		}
	}
	return missing
}
