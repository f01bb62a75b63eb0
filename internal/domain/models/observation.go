package models

import "time"

// ObservationKind distinguishes a plain price reading from a cross rate
// between two items.
type ObservationKind string

const (
	KindPrice ObservationKind = "price"
	KindRate  ObservationKind = "rate"
)

// Observation is a single source reading of an item's price, or of a rate
// between two items, at an instant. Observations are immutable once created.
type Observation struct {
	ItemID        int64           `json:"item_id"`
	CounterItemID int64           `json:"counter_item_id,omitempty"` // set only for rates
	Value         float64         `json:"value"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Confidence    float64         `json:"confidence"` // [0,1]
	Kind          ObservationKind `json:"kind"`

	// Seq is the ingestion sequence number assigned by the store. Merge uses
	// it to break confidence ties deterministically (last ingested wins).
	Seq int64 `json:"-"`
}

// PointKey identifies one (timestamp, item-pair, kind) triple.
type PointKey struct {
	Timestamp     int64 // UnixNano
	ItemID        int64
	CounterItemID int64
	Kind          ObservationKind
}

// Key returns the merge grouping key for the observation.
func (o Observation) Key() PointKey {
	return PointKey{
		Timestamp:     o.Timestamp.UnixNano(),
		ItemID:        o.ItemID,
		CounterItemID: o.CounterItemID,
		Kind:          o.Kind,
	}
}

// MergedPoint maps one (timestamp, item-pair, kind) triple to exactly one
// chosen observation. For a fixed key there is at most one MergedPoint.
type MergedPoint struct {
	Observation
}

// RawRecord is an observation row as delivered by a source adapter, before
// normalization. Pointer fields distinguish absent from zero: Ingest rejects
// a batch whose rows are structurally incomplete.
type RawRecord struct {
	Timestamp    *time.Time `json:"timestamp"`
	Value        *float64   `json:"value"`
	ItemID       *int64     `json:"item_id,omitempty"`
	SourceItemID *int64     `json:"source_item_id,omitempty"`
	TargetItemID *int64     `json:"target_item_id,omitempty"`
}

// ObservationBatch is one source's delivery of raw records, tagged with the
// declared kind and confidence the upstream adapter assigned.
type ObservationBatch struct {
	BatchID    string          `json:"batch_id,omitempty"`
	Source     string          `json:"source"`
	Kind       ObservationKind `json:"kind"`
	Confidence float64         `json:"confidence"`
	Records    []RawRecord     `json:"records"`
}

// StoreStatistics summarizes the current observation buffer. All fields are
// zero on an empty buffer.
type StoreStatistics struct {
	TotalPoints int            `json:"total_points"`
	PricePoints int            `json:"price_points"`
	RatePoints  int            `json:"rate_points"`
	Sources     map[string]int `json:"sources"`
	Confidence  ConfidenceStat `json:"confidence_stats"`
	PriceValues ValueStat      `json:"price_value_stats"`
	RateValues  ValueStat      `json:"rate_value_stats"`
}

// ConfidenceStat carries min/mean/max over buffered confidences.
type ConfidenceStat struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// ValueStat carries min/mean/max over buffered values of one kind.
type ValueStat struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}
