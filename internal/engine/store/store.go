// Package store buffers raw observations and merges same-instant readings
// from competing sources into a canonical sequence of points.
package store

import (
	"math"
	"sort"
	"sync"

	"ValueFlow/internal/domain/models"
)

// Store is the observation buffer for one processing window. Ingest calls
// are serialized; Merge and Statistics take read snapshots. Callers must not
// interleave Ingest with Merge on the same buffer without external
// synchronization.
type Store struct {
	mu  sync.RWMutex
	buf []models.Observation
	seq int64
}

func New() *Store {
	return &Store{}
}

// Ingest validates and appends one batch of raw records. The schema check
// runs over the whole batch before anything is appended: a single malformed
// row rejects the batch atomically and leaves the buffer untouched.
func (s *Store) Ingest(batch models.ObservationBatch) (int, error) {
	obs := make([]models.Observation, 0, len(batch.Records))
	for i, rec := range batch.Records {
		o, err := normalize(rec, i, batch)
		if err != nil {
			return 0, err
		}
		obs = append(obs, o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range obs {
		s.seq++
		obs[i].Seq = s.seq
	}
	s.buf = append(s.buf, obs...)
	return len(obs), nil
}

func normalize(rec models.RawRecord, idx int, batch models.ObservationBatch) (models.Observation, error) {
	if rec.Timestamp == nil {
		return models.Observation{}, &models.MalformedRecordError{Index: idx, Field: "timestamp"}
	}
	if rec.Value == nil || math.IsNaN(*rec.Value) {
		return models.Observation{}, &models.MalformedRecordError{Index: idx, Field: "value"}
	}

	o := models.Observation{
		Value:      *rec.Value,
		Timestamp:  rec.Timestamp.UTC(),
		Source:     batch.Source,
		Confidence: batch.Confidence,
		Kind:       batch.Kind,
	}
	switch batch.Kind {
	case models.KindRate:
		if rec.SourceItemID == nil {
			return models.Observation{}, &models.MalformedRecordError{Index: idx, Field: "source_item_id"}
		}
		if rec.TargetItemID == nil {
			return models.Observation{}, &models.MalformedRecordError{Index: idx, Field: "target_item_id"}
		}
		o.ItemID = *rec.SourceItemID
		o.CounterItemID = *rec.TargetItemID
	default:
		if rec.ItemID == nil {
			return models.Observation{}, &models.MalformedRecordError{Index: idx, Field: "item_id"}
		}
		o.ItemID = *rec.ItemID
	}
	return o, nil
}

// MergeOptions tunes candidate selection during Merge.
type MergeOptions struct {
	// PrioritySources restricts a group to these sources whenever at least
	// one member comes from one of them.
	PrioritySources []string
	// MinConfidence drops observations below the threshold before grouping.
	MinConfidence float64
}

// Merge deduplicates the buffer into one point per (timestamp, item-pair,
// kind) key. Within a group the member with the highest confidence wins;
// among equals the last-ingested observation wins. Returns an empty slice on
// an empty buffer.
func (s *Store) Merge(opts MergeOptions) []models.MergedPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	priority := make(map[string]bool, len(opts.PrioritySources))
	for _, src := range opts.PrioritySources {
		priority[src] = true
	}

	groups := make(map[models.PointKey][]models.Observation)
	for _, o := range s.buf {
		if o.Confidence < opts.MinConfidence {
			continue
		}
		k := o.Key()
		groups[k] = append(groups[k], o)
	}

	out := make([]models.MergedPoint, 0, len(groups))
	for _, group := range groups {
		candidates := group
		if len(priority) > 0 {
			preferred := group[:0:0]
			for _, o := range group {
				if priority[o.Source] {
					preferred = append(preferred, o)
				}
			}
			if len(preferred) > 0 {
				candidates = preferred
			}
		}

		best := candidates[0]
		for _, o := range candidates[1:] {
			if o.Confidence > best.Confidence ||
				(o.Confidence == best.Confidence && o.Seq > best.Seq) {
				best = o
			}
		}
		out = append(out, models.MergedPoint{Observation: best})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.CounterItemID != b.CounterItemID {
			return a.CounterItemID < b.CounterItemID
		}
		return a.Kind < b.Kind
	})
	return out
}

// Clear discards the buffer between processing windows. Sequence numbers keep
// counting so tie-breaks stay stable across windows.
func (s *Store) Clear() {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
}

// Statistics summarizes the buffer. All counts and confidence stats are zero
// on an empty buffer; it never fails.
func (s *Store) Statistics() models.StoreStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.StoreStatistics{Sources: make(map[string]int)}
	if len(s.buf) == 0 {
		return stats
	}

	stats.TotalPoints = len(s.buf)
	minC, maxC, sum := s.buf[0].Confidence, s.buf[0].Confidence, 0.0
	var prices, rates valueAgg
	for _, o := range s.buf {
		switch o.Kind {
		case models.KindRate:
			stats.RatePoints++
			rates.add(o.Value)
		default:
			stats.PricePoints++
			prices.add(o.Value)
		}
		stats.Sources[o.Source]++
		if o.Confidence < minC {
			minC = o.Confidence
		}
		if o.Confidence > maxC {
			maxC = o.Confidence
		}
		sum += o.Confidence
	}
	stats.Confidence = models.ConfidenceStat{
		Min:  minC,
		Mean: sum / float64(len(s.buf)),
		Max:  maxC,
	}
	stats.PriceValues = prices.stat()
	stats.RateValues = rates.stat()
	return stats
}

type valueAgg struct {
	n        int
	min, max float64
	sum      float64
}

func (a *valueAgg) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *valueAgg) stat() models.ValueStat {
	if a.n == 0 {
		return models.ValueStat{}
	}
	return models.ValueStat{Min: a.min, Mean: a.sum / float64(a.n), Max: a.max}
}
