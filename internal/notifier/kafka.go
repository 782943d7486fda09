package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alerts as JSON records keyed by asset.
type KafkaNotifier struct {
	Writer MessageWriter
	Topic  string
}

// NewKafkaNotifier creates a notifier backed by a synchronous kafka.Writer.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaNotifier{Writer: w, Topic: topic}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Notify(ctx context.Context, alert Alert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("kafka: marshal: %w", err)
	}
	key := alert.Asset
	if alert.IsSummary() {
		key = "summary"
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  alert.Timestamp,
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", k.Topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaNotifier) Close() error {
	return k.Writer.Close()
}
