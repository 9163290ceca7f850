package store

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaActivityPublisher mirrors ActivityEvent rows to a Kafka topic for
// external observability consumers (spec.md §3's ActivityEvent is a
// "user-visible audit log" — this is purely an additional fan-out, never a
// write dependency: a publish failure is logged and dropped, never
// propagated to the caller of InsertActivityEvent).
type KafkaActivityPublisher struct {
	writer *kafka.Writer
}

// NewKafkaActivityPublisher returns a publisher writing to topic on the
// given brokers. The underlying writer batches asynchronously; Close
// flushes on shutdown.
func NewKafkaActivityPublisher(brokers []string, topic string) *KafkaActivityPublisher {
	return &KafkaActivityPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Async:        true,
			RequiredAcks: kafka.RequireNone,
		},
	}
}

// Publish best-effort writes e as a JSON message. Errors are logged, never
// returned: the ActivityEvent audit trail in the Store remains the source
// of truth regardless of Kafka availability.
func (p *KafkaActivityPublisher) Publish(ctx context.Context, e ActivityEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("marshal activity event for kafka")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Type),
		Value: payload,
	}); err != nil {
		log.Warn().Err(err).Str("type", e.Type).Msg("publish activity event to kafka")
	}
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaActivityPublisher) Close() error {
	return p.writer.Close()
}
