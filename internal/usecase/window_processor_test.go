package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
	"ValueFlow/internal/engine/registry"
	applogger "ValueFlow/pkg/logger"
)

type memSink struct {
	mu          sync.Mutex
	resolutions map[string][]models.Resolution
	logs        []models.ProcessingLog
	failStore   bool
}

func newMemSink() *memSink {
	return &memSink{resolutions: make(map[string][]models.Resolution)}
}

func (s *memSink) Init(ctx context.Context) error { return nil }

func (s *memSink) StoreResolutions(ctx context.Context, windowID string, res []models.Resolution) error {
	if s.failStore {
		return fmt.Errorf("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutions[windowID] = res
	return nil
}

func (s *memSink) StoreLog(ctx context.Context, log models.ProcessingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memSink) LatestResolutions(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Resolution, error) {
	return nil, nil
}

func (s *memSink) Health(ctx context.Context) error { return nil }
func (s *memSink) Close() error                     { return nil }

type memPublisher struct {
	mu        sync.Mutex
	published map[string][]models.Resolution
}

func newMemPublisher() *memPublisher {
	return &memPublisher{published: make(map[string][]models.Resolution)}
}

func (p *memPublisher) PublishResolutions(ctx context.Context, windowID string, res []models.Resolution) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[windowID] = res
	return nil
}

func (p *memPublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordBatchIngested(source, kind string, records int) {}
func (nopMetrics) RecordMergedPoints(n int)                             {}
func (nopMetrics) RecordValidationFailure(check string)                 {}
func (nopMetrics) RecordGraphBuild(seconds float64, nodes, edges int)   {}
func (nopMetrics) RecordResolution(outcome string)                      {}
func (nopMetrics) RecordError(kind string)                              {}

func testSettings() EngineSettings {
	return EngineSettings{
		BaseSymbol:    "USD",
		MinConfidence: 0.5,
		MinValue:      0.0001,
		MaxValue:      1e9,
	}
}

func newTestProcessor(t *testing.T) (*WindowProcessor, *memSink, *memPublisher) {
	t.Helper()
	sink := newMemSink()
	pub := newMemPublisher()
	proc := NewWindowProcessor(testSettings(), registry.New(), sink, pub, nopMetrics{}, applogger.Nop())
	return proc, sink, pub
}

func priceBatch(source string, conf float64, itemID int64, ts time.Time, value float64) *models.ObservationBatch {
	return &models.ObservationBatch{
		BatchID:    source + "-1",
		Source:     source,
		Kind:       models.KindPrice,
		Confidence: conf,
		Records: []models.RawRecord{
			{Timestamp: &ts, Value: &value, ItemID: &itemID},
		},
	}
}

func rateBatch(source string, conf float64, from, to int64, ts time.Time, value float64) *models.ObservationBatch {
	return &models.ObservationBatch{
		BatchID:    source + "-1",
		Source:     source,
		Kind:       models.KindRate,
		Confidence: conf,
		Records: []models.RawRecord{
			{Timestamp: &ts, Value: &value, SourceItemID: &from, TargetItemID: &to},
		},
	}
}

func TestProcessWindowSuccess(t *testing.T) {
	proc, sink, pub := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	ts := start.Add(10 * time.Second)

	if err := proc.IngestBatch(context.Background(), priceBatch("lbma", 0.9, gold.ID, ts, 1900)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	res, err := proc.ProcessWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("process window: %v", err)
	}
	if res.Log.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", res.Log.Status)
	}
	if len(res.Resolutions) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(res.Resolutions))
	}
	r := res.Resolutions[0]
	if r.Symbol != "GOLD" || r.Value != 1900 || r.Confidence != 0.9 {
		t.Fatalf("unexpected resolution %+v", r)
	}

	if got := sink.resolutions[res.Log.WindowID]; len(got) != 1 {
		t.Fatalf("sink did not receive resolutions: %+v", sink.resolutions)
	}
	if got := pub.published[res.Log.WindowID]; len(got) != 1 {
		t.Fatalf("publisher did not receive resolutions: %+v", pub.published)
	}
	if len(sink.logs) != 1 || sink.logs[0].WindowID != res.Log.WindowID {
		t.Fatalf("processing log missing: %+v", sink.logs)
	}

	// Buffer must be cleared for the next window.
	if got := proc.Statistics().TotalPoints; got != 0 {
		t.Fatalf("buffer not cleared, has %d points", got)
	}
}

func TestProcessWindowResolvesViaRatePath(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)
	silver := proc.Registry().Ensure("SILVER", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	mustIngest(t, proc, priceBatch("lbma", 0.9, gold.ID, start.Add(5*time.Second), 2000))
	mustIngest(t, proc, rateBatch("lbma", 0.8, gold.ID, silver.ID, start.Add(6*time.Second), 0.012))

	res, err := proc.ProcessWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("process window: %v", err)
	}

	var got *models.Resolution
	for i := range res.Resolutions {
		if res.Resolutions[i].Symbol == "SILVER" {
			got = &res.Resolutions[i]
		}
	}
	if got == nil {
		t.Fatalf("SILVER not resolved: %+v", res.Resolutions)
	}
	if want := 2000 * 0.012; got.Value < want-1e-9 || got.Value > want+1e-9 {
		t.Fatalf("expected value %v, got %v", want, got.Value)
	}
	// Weakest link along base -> GOLD -> SILVER.
	if got.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", got.Confidence)
	}
	if len(got.Path) != 3 {
		t.Fatalf("expected 3-node path, got %v", got.Path)
	}
}

func TestIngestBatchRejectsFailedValidation(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bad := priceBatch("shady", 0.9, gold.ID, start, -5) // below min_value

	if err := proc.IngestBatch(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
	if got := proc.Statistics().TotalPoints; got != 0 {
		t.Fatalf("rejected batch must not enter the buffer, has %d", got)
	}
}

func TestProcessWindowPartialOnSourceFailure(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	mustIngest(t, proc, priceBatch("lbma", 0.9, gold.ID, start.Add(time.Second), 1900))
	_ = proc.IngestBatch(context.Background(), priceBatch("shady", 0.9, gold.ID, start.Add(2*time.Second), -5))

	res, err := proc.ProcessWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("process window: %v", err)
	}
	if res.Log.Status != models.StatusPartial {
		t.Fatalf("expected partial, got %s", res.Log.Status)
	}
	if _, ok := res.Log.SourceFailures["shady"]; !ok {
		t.Fatalf("expected shady in source failures: %+v", res.Log.SourceFailures)
	}
	if len(res.Resolutions) != 1 {
		t.Fatalf("healthy source must still resolve, got %+v", res.Resolutions)
	}
}

func TestProcessWindowEmptyGraphFails(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	res, err := proc.ProcessWindow(context.Background(), start, start.Add(time.Minute))
	if !errors.Is(err, models.ErrEmptyGraph) {
		t.Fatalf("expected ErrEmptyGraph, got %v", err)
	}
	if res == nil || res.Log.Status != models.StatusFailed {
		t.Fatalf("expected failed result, got %+v", res)
	}
	// A failed window still leaves a log entry.
	if len(sink.logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(sink.logs))
	}
}

func TestProcessWindowUnreachableItemsOnly(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)
	silver := proc.Registry().Ensure("SILVER", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	// Rate edge only: nothing connects the base to either item.
	mustIngest(t, proc, rateBatch("ecb", 0.8, gold.ID, silver.ID, start.Add(time.Second), 0.012))

	res, err := proc.ProcessWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("process window: %v", err)
	}
	if res.Log.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Log.Status)
	}
	if res.Log.ItemsUnreachable == 0 {
		t.Fatal("expected unreachable items")
	}
	if _, ok := res.Log.SourceFailures["item:GOLD"]; !ok {
		t.Fatalf("expected item:GOLD failure, got %+v", res.Log.SourceFailures)
	}
}

func TestProcessWindowToleratesSinkFailure(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)
	sink.failStore = true
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustIngest(t, proc, priceBatch("lbma", 0.9, gold.ID, start.Add(time.Second), 1900))

	res, err := proc.ProcessWindow(context.Background(), start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("sink failure must not fail the window: %v", err)
	}
	if res.Log.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", res.Log.Status)
	}
}

func TestResolveSymbolUsesLastGraph(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	if _, err := proc.ResolveSymbol("GOLD"); !errors.Is(err, models.ErrEmptyGraph) {
		t.Fatalf("expected ErrEmptyGraph before first window, got %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustIngest(t, proc, priceBatch("lbma", 0.9, gold.ID, start.Add(time.Second), 1900))
	if _, err := proc.ProcessWindow(context.Background(), start, start.Add(time.Minute)); err != nil {
		t.Fatalf("process window: %v", err)
	}

	r, err := proc.ResolveSymbol("gold")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Value != 1900 {
		t.Fatalf("expected 1900, got %v", r.Value)
	}

	if _, err := proc.ResolveSymbol("UNKNOWN"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func mustIngest(t *testing.T, proc *WindowProcessor, b *models.ObservationBatch) {
	t.Helper()
	if err := proc.IngestBatch(context.Background(), b); err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

func TestProcessWindowBuildsGraphFromMergedPoints(t *testing.T) {
	settings := testSettings()
	settings.PrioritySources = []string{"imf"}
	proc := NewWindowProcessor(settings, registry.New(), newMemSink(), newMemPublisher(), nopMetrics{}, applogger.Nop())
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	ts := start.Add(10 * time.Second)

	// Same instant, same item: the priority source wins the merge even
	// against higher confidence, and only the merged point may reach the
	// graph.
	mustIngest(t, proc, priceBatch("bloomberg", 0.99, gold.ID, ts, 5.0))
	mustIngest(t, proc, priceBatch("imf", 0.7, gold.ID, ts, 6.0))

	res, err := proc.ProcessWindow(context.Background(), start, end)
	if err != nil {
		t.Fatalf("process window: %v", err)
	}
	if len(res.Resolutions) != 1 {
		t.Fatalf("expected 1 resolution, got %+v", res.Resolutions)
	}
	r := res.Resolutions[0]
	if r.Value != 6.0 || r.Confidence != 0.7 {
		t.Fatalf("priority source must survive into the graph, got value=%v conf=%v", r.Value, r.Confidence)
	}
	if merged := proc.LastMerged(); len(merged) != 1 || merged[0].Source != "imf" {
		t.Fatalf("unexpected merge outcome: %+v", merged)
	}
}

func TestIngestBatchAggregatesValidationPerSource(t *testing.T) {
	proc, _, _ := newTestProcessor(t)
	gold := proc.Registry().Ensure("GOLD", models.CategoryCommodity)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustIngest(t, proc, priceBatch("lbma", 0.9, gold.ID, start.Add(time.Second), 1900))
	// Second batch from the same source fails validation; its report must
	// add to the first, not replace it.
	_ = proc.IngestBatch(context.Background(), priceBatch("lbma", 0.9, gold.ID, start.Add(2*time.Second), -5))

	res, err := proc.ProcessWindow(context.Background(), start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("process window: %v", err)
	}
	rep, ok := res.Validation["lbma"]
	if !ok {
		t.Fatalf("missing lbma report: %+v", res.Validation)
	}
	if rep.TotalRecords != 2 || rep.ValidRecords != 1 || rep.InvalidRecords != 1 {
		t.Fatalf("reports not aggregated: %+v", rep)
	}
	if rep.Passed {
		t.Fatal("aggregate must fail when any batch failed")
	}
}
