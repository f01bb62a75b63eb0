package repository

import (
	"context"
	"time"

	"ValueFlow/internal/domain/models"
)

// BatchFeed streams observation batches from an upstream source adapter.
type BatchFeed interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.ObservationBatch, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotFeed is an optional BatchFeed extension that serves the latest
// batches over a request/response API for a warm start.
type SnapshotFeed interface {
	Snapshot(ctx context.Context) ([]*models.ObservationBatch, error)
}

// ResultPublisher pushes window results to downstream consumers.
type ResultPublisher interface {
	PublishResolutions(ctx context.Context, windowID string, res []models.Resolution) error
	Close() error
}

// ValuationSink persists what a processed window produced. The engine itself
// holds no durable state; this is the storage collaborator boundary.
type ValuationSink interface {
	Init(ctx context.Context) error
	StoreResolutions(ctx context.Context, windowID string, res []models.Resolution) error
	StoreLog(ctx context.Context, log models.ProcessingLog) error
	LatestResolutions(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Resolution, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records engine activity counters and timings.
type Metrics interface {
	RecordBatchIngested(source string, kind string, records int)
	RecordMergedPoints(n int)
	RecordValidationFailure(check string)
	RecordGraphBuild(seconds float64, nodes, edges int)
	RecordResolution(outcome string)
	RecordError(kind string)
}
