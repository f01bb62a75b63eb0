package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ValueFlow/internal/domain/models"
	domrepo "ValueFlow/internal/domain/repository"
)

// Ingestor is the minimal processor interface the pipeline needs.
type Ingestor interface {
	IngestBatch(ctx context.Context, b *models.ObservationBatch) error
}

// IngestPipeline sits between the live feed and the window processor. It
// screens obviously broken batches, throttles per source, and buffers batches
// for retry when ingestion fails transiently. Validation rejections are
// permanent and dropped immediately.
type IngestPipeline struct {
	ing      Ingestor
	metrics  domrepo.Metrics
	maxBPS   int
	bufSize  int
	bufCh    chan *models.ObservationBatch
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-source last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxBatchesPerSecond sets the max accepted batches per second per source.
func WithMaxBatchesPerSecond(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxBPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(ing Ingestor, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		ing:      ing,
		metrics:  metrics,
		maxBPS:   20,
		bufSize:  256,
		bufCh:    make(chan *models.ObservationBatch, 256),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.ObservationBatch, p.bufSize)
	}
	return p
}

// Start launches background retry of buffered batches.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if b == nil {
					continue
				}
				if err := p.ing.IngestBatch(ctx, b); err != nil && !permanent(err) {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					// Stop must not wait out the backoff.
					t := time.NewTimer(backoff)
					select {
					case <-t.C:
					case <-p.stopCh:
						t.Stop()
						return
					case <-ctx.Done():
						t.Stop()
						return
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background retry loop.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process screens, throttles, and forwards a batch, buffering transient failures.
func (p *IngestPipeline) Process(ctx context.Context, b *models.ObservationBatch) error {
	if err := screenBatch(b); err != nil {
		p.metrics.RecordError("pipeline_screen")
		return err
	}
	if !p.allow(b.Source, time.Now()) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.ing.IngestBatch(ctx, b); err != nil {
		if permanent(err) {
			// the processor already recorded the source failure
			return err
		}
		p.metrics.RecordError("pipeline_ingest")
		select {
		case p.bufCh <- b:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

// permanent reports whether retrying the batch can never succeed.
func permanent(err error) bool {
	var malformed *models.MalformedRecordError
	return errors.As(err, &malformed)
}

func screenBatch(b *models.ObservationBatch) error {
	if b == nil {
		return fmt.Errorf("batch nil")
	}
	if b.Source == "" {
		return fmt.Errorf("source empty")
	}
	if len(b.Records) == 0 {
		return fmt.Errorf("batch has no records")
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %g", b.Confidence)
	}
	return nil
}

func (p *IngestPipeline) allow(source string, now time.Time) bool {
	if p.maxBPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[source]
	if last.IsZero() {
		p.lastSeen[source] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxBPS) {
		return false
	}
	p.lastSeen[source] = now
	return true
}
