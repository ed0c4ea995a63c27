package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaLog publishes one Kafka message per audit entry, keyed by service name
// so records for the same operation land on the same partition.
type KafkaLog struct {
	writer *kafka.Writer
}

// NewKafkaLog creates a Kafka-backed audit sink writing to topic.
func NewKafkaLog(brokers []string, topic string) *KafkaLog {
	return &KafkaLog{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Append writes the entry to the audit topic.
func (l *KafkaLog) Append(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	err = l.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Service),
		Value: raw,
	})
	if err != nil {
		return fmt.Errorf("failed to write audit entry to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (l *KafkaLog) Close() error {
	return l.writer.Close()
}

var _ Log = (*KafkaLog)(nil)
