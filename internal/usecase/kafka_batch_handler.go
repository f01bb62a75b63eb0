package usecase

import (
	"context"
	"encoding/json"

	"ValueFlow/internal/domain/models"
	drepo "ValueFlow/internal/domain/repository"
	pkgkafka "ValueFlow/pkg/kafka"
)

// KafkaBatchHandler consumes observation batches from Kafka and feeds them to
// the window processor.
type KafkaBatchHandler struct {
	topic   string
	proc    *WindowProcessor
	metrics drepo.Metrics
}

func NewKafkaBatchHandler(topic string, proc *WindowProcessor, metrics drepo.Metrics) *KafkaBatchHandler {
	return &KafkaBatchHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaBatchHandler) Topic() string { return h.topic }

// incoming message schema: models.ObservationBatch as JSON
func (h *KafkaBatchHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.ObservationBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if len(batch.Records) == 0 {
		return nil
	}
	// A failed batch is isolated per source inside the processor; returning
	// the error here lets the consumer retry transient failures.
	return h.proc.IngestBatch(ctx, &batch)
}

var _ pkgkafka.MessageHandler = (*KafkaBatchHandler)(nil)
