package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	applogger "ValueFlow/pkg/logger"
)

// ConsumerHook observes message handling. BeforeHandle may rewrite
// the context, message or payload; a non-nil error skips the handler
// and routes the message through error processing and the DLQ.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook ignores all lifecycle events.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// LoggingHook logs handler failures with enough message coordinates
// to replay them from the topic.
type LoggingHook struct {
	log *applogger.Logger
}

// NewLoggingHook creates a hook that logs failed messages.
func NewLoggingHook(l *applogger.Logger) *LoggingHook {
	return &LoggingHook{log: l}
}

func (h *LoggingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (h *LoggingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (h *LoggingHook) OnError(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.log == nil {
		return
	}
	h.log.Warn("kafka message failed",
		applogger.String("topic", topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
		applogger.Error(err),
	)
}
