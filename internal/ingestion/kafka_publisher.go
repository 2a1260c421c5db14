package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WyvernExchange/internal/event"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes envelopes to one Kafka topic, keyed by order hash so
// every event about an order lands on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// KafkaMessages renders envs as Kafka messages.
func KafkaMessages(envs []event.Envelope) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(envs))
	for i := range envs {
		env := &envs[i]
		value, err := json.Marshal(ToWire(env))
		if err != nil {
			return nil, fmt.Errorf("marshal event %d: %w", env.Sequence, err)
		}
		key := []byte(env.EventType.String())
		if env.OrderHash != nil {
			key = env.OrderHash.Bytes()
		}
		msgs = append(msgs, kafka.Message{
			Key:   key,
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(env.EventType.String())},
				{Key: "event_id", Value: []byte(env.EventID.String())},
			},
			Time: env.Timestamp,
		})
	}
	return msgs, nil
}

func (k *KafkaSink) Publish(ctx context.Context, envs []event.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	msgs, err := KafkaMessages(envs)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
