package usecase

import (
	"context"

	"ValueFlow/internal/domain/models"
	drepo "ValueFlow/internal/domain/repository"
	mid "ValueFlow/internal/middleware"
	applogger "ValueFlow/pkg/logger"
)

// BatchCollector pulls observation batches from a live feed and hands them to
// the window processor, optionally through the ingest pipeline.
type BatchCollector struct {
	feed    drepo.BatchFeed
	proc    *WindowProcessor
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
	l       *applogger.Logger
}

// NewBatchCollector creates a new BatchCollector instance.
func NewBatchCollector(feed drepo.BatchFeed, proc *WindowProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline, l *applogger.Logger) *BatchCollector {
	return &BatchCollector{feed: feed, proc: proc, metrics: metrics, pipe: pipe, l: l}
}

// IsConnected returns true if the feed is connected.
func (c *BatchCollector) IsConnected() bool {
	return c.feed.IsConnected()
}

func (c *BatchCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	c.warmStart(ctx)
	batches, errs := c.feed.Read(ctx)
	go c.consume(ctx, batches, errs)
	return nil
}

// warmStart seeds the buffer with the latest snapshot per source, when the
// feed supports it. Failure is not fatal; the stream fills the gap.
func (c *BatchCollector) warmStart(ctx context.Context) {
	sf, ok := c.feed.(drepo.SnapshotFeed)
	if !ok {
		return
	}
	batches, err := sf.Snapshot(ctx)
	if err != nil {
		c.metrics.RecordError("feed_snapshot")
		c.l.Warn("feed snapshot failed", applogger.Error(err))
	}
	for _, b := range batches {
		_ = c.proc.IngestBatch(ctx, b)
	}
	if len(batches) > 0 {
		c.l.Info("feed snapshot ingested", applogger.Int("batches", len(batches)))
	}
}

func (c *BatchCollector) consume(ctx context.Context, batches <-chan *models.ObservationBatch, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			if err != nil {
				c.metrics.RecordError("feed")
				c.l.Warn("feed error, reconnecting", applogger.Error(err))
				_ = c.feed.Reconnect(ctx)
			}
		case b := <-batches:
			if b == nil {
				continue
			}
			// Rejected batches are already recorded against their source.
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, b)
			} else {
				_ = c.proc.IngestBatch(ctx, b)
			}
		}
	}
}

func (c *BatchCollector) Stop() error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.feed.Close()
}
