package models

import "time"

// ValidationReport summarizes a batch validation pass. LargeGaps is an
// informational signal only; it does not reduce ValidRecords.
type ValidationReport struct {
	TotalRecords   int  `json:"total_records"`
	ValidRecords   int  `json:"valid_records"`
	InvalidRecords int  `json:"invalid_records"`
	MissingValues  int  `json:"missing_values"`
	OutOfRange     int  `json:"out_of_range"`
	Duplicates     int  `json:"duplicates"`
	LargeGaps      int  `json:"large_gaps"`
	Passed         bool `json:"validation_passed"`
}

// Merge folds another report into this one. Counters add up and the combined
// report passes only when both inputs passed.
func (r ValidationReport) Merge(o ValidationReport) ValidationReport {
	return ValidationReport{
		TotalRecords:   r.TotalRecords + o.TotalRecords,
		ValidRecords:   r.ValidRecords + o.ValidRecords,
		InvalidRecords: r.InvalidRecords + o.InvalidRecords,
		MissingValues:  r.MissingValues + o.MissingValues,
		OutOfRange:     r.OutOfRange + o.OutOfRange,
		Duplicates:     r.Duplicates + o.Duplicates,
		LargeGaps:      r.LargeGaps + o.LargeGaps,
		Passed:         r.Passed && o.Passed,
	}
}

// ConsistencyReport covers reciprocal-rate checks and items that appear in
// rates but never in prices.
type ConsistencyReport struct {
	TotalItems        int  `json:"total_items"`
	TotalRatePairs    int  `json:"total_rate_pairs"`
	MissingItems      int  `json:"missing_items"`
	InconsistentRates int  `json:"inconsistent_rates"`
	Passed            bool `json:"validation_passed"`
}

// CompletenessReport counts expected-but-missing sampling periods per item
// and per rate pair over a window.
type CompletenessReport struct {
	TotalPeriods        int  `json:"total_periods"`
	MissingPricePeriods int  `json:"missing_price_periods"`
	MissingRatePeriods  int  `json:"missing_rate_periods"`
	Passed              bool `json:"validation_passed"`
}

// Resolution is the implied value of an item relative to the base unit,
// composed along the returned path. Confidence is the minimum confidence of
// any edge on the path.
type Resolution struct {
	ItemID     int64     `json:"item_id"`
	Symbol     string    `json:"symbol"`
	BaseID     int64     `json:"base_id"`
	BaseSymbol string    `json:"base_symbol"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
	Path       []int64   `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProcessingStatus classifies the outcome of one window run.
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusPartial ProcessingStatus = "partial"
	StatusFailed  ProcessingStatus = "failed"
)

// ProcessingLog records one window run: which sources contributed, which
// failed, and how much survived each stage.
type ProcessingLog struct {
	WindowID         string            `json:"window_id"`
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	Status           ProcessingStatus  `json:"status"`
	RecordsIngested  int               `json:"records_ingested"`
	PointsMerged     int               `json:"points_merged"`
	ItemsResolved    int               `json:"items_resolved"`
	ItemsUnreachable int               `json:"items_unreachable"`
	SourceFailures   map[string]string `json:"source_failures,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

// WindowResult is everything one processed window produced, handed to the
// orchestration layer to persist or discard as a unit.
type WindowResult struct {
	Log          ProcessingLog               `json:"log"`
	Validation   map[string]ValidationReport `json:"validation"` // keyed by source
	Consistency  ConsistencyReport           `json:"consistency"`
	Completeness CompletenessReport          `json:"completeness"`
	Statistics   StoreStatistics             `json:"statistics"`
	Resolutions  []Resolution                `json:"resolutions"`
}
