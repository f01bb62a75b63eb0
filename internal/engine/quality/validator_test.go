package quality

import (
	"math"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
)

func day(n int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func price(t time.Time, item int64, v float64) models.RawRecord {
	return models.RawRecord{Timestamp: &t, Value: &v, ItemID: &item}
}

func rate(t time.Time, src, dst int64, v float64) models.RawRecord {
	return models.RawRecord{Timestamp: &t, Value: &v, SourceItemID: &src, TargetItemID: &dst}
}

func TestValidatePricesClean(t *testing.T) {
	recs := []models.RawRecord{
		price(day(0), 1, 100),
		price(day(1), 1, 101),
		price(day(2), 1, 102),
	}
	rep := ValidatePrices(recs, 0, 1000, 7*24*time.Hour)
	if !rep.Passed {
		t.Fatalf("expected pass, got %+v", rep)
	}
	if rep.ValidRecords != 3 || rep.InvalidRecords != 0 {
		t.Fatalf("unexpected counts: %+v", rep)
	}
}

func TestValidatePricesCountsDefects(t *testing.T) {
	missingVal := models.RawRecord{Timestamp: timePtr(day(0)), ItemID: int64Ptr(1)}
	nan := price(day(6), 1, math.NaN())
	recs := []models.RawRecord{
		price(day(0), 1, 100),
		price(day(0), 1, 100), // exact duplicate
		price(day(1), 1, -5),  // below min
		price(day(2), 1, 2000),
		missingVal,
		nan,
	}
	rep := ValidatePrices(recs, 0, 1000, 0)
	if rep.MissingValues != 2 {
		t.Fatalf("missing = %d, want 2", rep.MissingValues)
	}
	if rep.OutOfRange != 2 {
		t.Fatalf("out_of_range = %d, want 2", rep.OutOfRange)
	}
	if rep.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", rep.Duplicates)
	}
	if rep.Passed {
		t.Fatalf("must not pass with invalid records: %+v", rep)
	}
}

func TestValidatePricesRangeInclusive(t *testing.T) {
	recs := []models.RawRecord{price(day(0), 1, 0), price(day(1), 1, 1000)}
	rep := ValidatePrices(recs, 0, 1000, 0)
	if rep.OutOfRange != 0 {
		t.Fatalf("bounds are inclusive, got out_of_range=%d", rep.OutOfRange)
	}
}

func TestValidatePricesLargeGap(t *testing.T) {
	// 10 daily points with one 10-day gap in the middle.
	recs := make([]models.RawRecord, 0, 10)
	for i := 0; i < 5; i++ {
		recs = append(recs, price(day(i), 1, 100))
	}
	for i := 0; i < 5; i++ {
		recs = append(recs, price(day(14+i), 1, 100+float64(i)))
	}
	rep := ValidatePrices(recs, 0, 1000, 7*24*time.Hour)
	if rep.LargeGaps != 1 {
		t.Fatalf("large_gaps = %d, want 1", rep.LargeGaps)
	}
	// Gaps are informational: valid count is unaffected.
	if rep.ValidRecords != 10 || !rep.Passed {
		t.Fatalf("gap must not invalidate records: %+v", rep)
	}
}

func TestValidateRatesPerPairGaps(t *testing.T) {
	recs := []models.RawRecord{
		rate(day(0), 1, 2, 0.9),
		rate(day(10), 1, 2, 0.9),
		rate(day(0), 2, 1, 1.1),
		rate(day(1), 2, 1, 1.1),
	}
	rep := ValidateRates(recs, 0, 10, 7*24*time.Hour)
	if rep.LargeGaps != 1 {
		t.Fatalf("large_gaps = %d, want 1 (only the 1→2 pair gaps)", rep.LargeGaps)
	}
}

func TestValidateConsistencyWithinTolerance(t *testing.T) {
	rates := []models.RawRecord{
		rate(day(0), 1, 2, 0.90),
		rate(day(0), 2, 1, 1.10), // 0.90*1.10 = 0.99, within 0.01
	}
	prices := []models.RawRecord{price(day(0), 1, 1), price(day(0), 2, 1)}
	rep := ValidateConsistency(prices, rates)
	if rep.InconsistentRates != 0 || !rep.Passed {
		t.Fatalf("expected consistent pair, got %+v", rep)
	}
}

func TestValidateConsistencyViolation(t *testing.T) {
	rates := []models.RawRecord{
		rate(day(0), 1, 2, 0.90),
		rate(day(0), 2, 1, 2.0), // product 1.80
	}
	prices := []models.RawRecord{price(day(0), 1, 1), price(day(0), 2, 1)}
	rep := ValidateConsistency(prices, rates)
	if rep.InconsistentRates != 1 {
		t.Fatalf("inconsistent_rates = %d, want 1", rep.InconsistentRates)
	}
	if rep.Passed {
		t.Fatalf("must fail: %+v", rep)
	}
}

func TestValidateConsistencyMissingItems(t *testing.T) {
	rates := []models.RawRecord{rate(day(0), 1, 2, 1.0), rate(day(0), 2, 1, 1.0)}
	prices := []models.RawRecord{price(day(0), 1, 1)} // item 2 never priced
	rep := ValidateConsistency(prices, rates)
	if rep.MissingItems != 1 || rep.Passed {
		t.Fatalf("expected 1 missing item and failure, got %+v", rep)
	}
}

func TestValidateCompleteness(t *testing.T) {
	prices := []models.RawRecord{
		price(day(0), 1, 100),
		price(day(2), 1, 102), // day(1) missing
	}
	rates := []models.RawRecord{
		rate(day(0), 1, 2, 1.0),
		rate(day(1), 1, 2, 1.0),
		rate(day(2), 1, 2, 1.0),
	}
	rep := ValidateCompleteness(prices, rates, day(0), day(2), 24*time.Hour)
	if rep.TotalPeriods != 3 {
		t.Fatalf("total_periods = %d, want 3", rep.TotalPeriods)
	}
	if rep.MissingPricePeriods != 1 || rep.MissingRatePeriods != 0 {
		t.Fatalf("unexpected missing periods: %+v", rep)
	}
	if rep.Passed {
		t.Fatalf("incomplete window must fail")
	}
}

func TestValidateCompletenessFull(t *testing.T) {
	prices := []models.RawRecord{price(day(0), 1, 1), price(day(1), 1, 2)}
	rep := ValidateCompleteness(prices, nil, day(0), day(1), 24*time.Hour)
	if !rep.Passed {
		t.Fatalf("expected pass, got %+v", rep)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
func int64Ptr(v int64) *int64        { return &v }
