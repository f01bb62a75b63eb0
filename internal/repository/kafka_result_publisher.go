package repository

import (
	"context"

	"ValueFlow/internal/domain/models"
	"ValueFlow/internal/domain/repository"
	pkgkafka "ValueFlow/pkg/kafka"
)

// KafkaResultPublisher pushes window resolutions to a Kafka topic, keyed by
// symbol so per-item ordering survives partitioning.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) repository.ResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) PublishResolutions(ctx context.Context, windowID string, res []models.Resolution) error {
	if len(res) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(res))
	for i, r := range res {
		msgs[i] = pkgkafka.Message{
			Key: []byte(r.Symbol),
			Value: map[string]interface{}{
				"window_id":  windowID,
				"item_id":    r.ItemID,
				"symbol":     r.Symbol,
				"base":       r.BaseSymbol,
				"value":      r.Value,
				"confidence": r.Confidence,
				"path":       r.Path,
				"ts":         r.Timestamp.UnixNano(),
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
