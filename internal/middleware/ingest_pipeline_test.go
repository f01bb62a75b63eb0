package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ValueFlow/internal/domain/models"
)

type fakeIngestor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeIngestor) IngestBatch(ctx context.Context, b *models.ObservationBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeIngestor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: make(map[string]int)} }

func (m *fakeMetrics) RecordBatchIngested(source, kind string, records int) {}
func (m *fakeMetrics) RecordMergedPoints(n int)                             {}
func (m *fakeMetrics) RecordValidationFailure(check string)                 {}
func (m *fakeMetrics) RecordGraphBuild(seconds float64, nodes, edges int)   {}
func (m *fakeMetrics) RecordResolution(outcome string)                      {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validBatch(source string) *models.ObservationBatch {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	v := 100.0
	id := int64(1)
	return &models.ObservationBatch{
		Source:     source,
		Kind:       models.KindPrice,
		Confidence: 0.9,
		Records:    []models.RawRecord{{Timestamp: &ts, Value: &v, ItemID: &id}},
	}
}

func TestProcessScreensBrokenBatches(t *testing.T) {
	ing := &fakeIngestor{}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m)

	cases := []*models.ObservationBatch{
		nil,
		{Source: "", Records: validBatch("x").Records, Confidence: 0.5},
		{Source: "a", Confidence: 0.5},
		func() *models.ObservationBatch { b := validBatch("a"); b.Confidence = 1.5; return b }(),
	}
	for i, b := range cases {
		if err := p.Process(context.Background(), b); err == nil {
			t.Fatalf("case %d: expected screen rejection", i)
		}
	}
	if ing.callCount() != 0 {
		t.Fatalf("screened batches must not reach the ingestor, saw %d calls", ing.callCount())
	}
	if got := m.errorCount("pipeline_screen"); got != len(cases) {
		t.Fatalf("expected %d screen errors, got %d", len(cases), got)
	}
}

func TestProcessThrottlesPerSource(t *testing.T) {
	ing := &fakeIngestor{}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m, WithMaxBatchesPerSecond(1))

	if err := p.Process(context.Background(), validBatch("lbma")); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	// Same source again immediately: dropped without error.
	if err := p.Process(context.Background(), validBatch("lbma")); err != nil {
		t.Fatalf("throttled batch must drop silently: %v", err)
	}
	// A different source is not affected.
	if err := p.Process(context.Background(), validBatch("ecb")); err != nil {
		t.Fatalf("other source: %v", err)
	}

	if ing.callCount() != 2 {
		t.Fatalf("expected 2 ingested, got %d", ing.callCount())
	}
	if m.errorCount("pipeline_throttle") != 1 {
		t.Fatalf("expected 1 throttle drop, got %d", m.errorCount("pipeline_throttle"))
	}
}

func TestProcessDoesNotBufferPermanentFailures(t *testing.T) {
	ing := &fakeIngestor{err: &models.MalformedRecordError{Field: "value", Index: 0}}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m)

	if err := p.Process(context.Background(), validBatch("lbma")); err == nil {
		t.Fatal("expected permanent error to propagate")
	}
	if len(p.bufCh) != 0 {
		t.Fatalf("malformed batch must not be buffered, buffer has %d", len(p.bufCh))
	}
}

func TestProcessBuffersTransientFailures(t *testing.T) {
	ing := &fakeIngestor{err: errors.New("downstream busy")}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m, WithBufferSize(4))

	if err := p.Process(context.Background(), validBatch("lbma")); err == nil {
		t.Fatal("expected transient error to propagate")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("expected 1 buffered batch, got %d", len(p.bufCh))
	}

	// Once downstream recovers, the retry loop drains the buffer.
	ing.mu.Lock()
	ing.err = nil
	ing.mu.Unlock()

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.bufCh) == 0 && ing.callCount() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered batch never flushed: buffer=%d calls=%d", len(p.bufCh), ing.callCount())
}

func TestProcessDropsWhenBufferFull(t *testing.T) {
	ing := &fakeIngestor{err: errors.New("downstream busy")}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m, WithBufferSize(1), WithMaxBatchesPerSecond(1000))

	_ = p.Process(context.Background(), validBatch("a"))
	_ = p.Process(context.Background(), validBatch("b"))

	if len(p.bufCh) != 1 {
		t.Fatalf("expected buffer capped at 1, got %d", len(p.bufCh))
	}
	if m.errorCount("pipeline_buffer_full") != 1 {
		t.Fatalf("expected 1 buffer-full drop, got %d", m.errorCount("pipeline_buffer_full"))
	}
}

func TestStopHaltsRetryDuringBackoff(t *testing.T) {
	ing := &fakeIngestor{err: errors.New("downstream busy")}
	m := newFakeMetrics()
	p := NewIngestPipeline(ing, m, WithBufferSize(4))

	p.bufCh <- validBatch("lbma")
	p.Start(context.Background())

	// Let the loop fail at least once so it sits in its backoff wait.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && ing.callCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if ing.callCount() == 0 {
		t.Fatal("retry loop never attempted the batch")
	}

	p.Stop()
	// One attempt may already be past the stop check; let it land.
	time.Sleep(50 * time.Millisecond)
	calls := ing.callCount()

	time.Sleep(300 * time.Millisecond)
	if got := ing.callCount(); got != calls {
		t.Fatalf("retry loop kept running after Stop: %d then %d calls", calls, got)
	}
}
