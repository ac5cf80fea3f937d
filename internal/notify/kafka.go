package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/cartsync/internal/metrics"
	"github.com/fjod/cartsync/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
)

const DefaultKafkaTopic = "cart-finalized"

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards cartFinalized events to a topic for downstream
// order processing. Other event types are ignored.
type KafkaPublisher struct {
	writer  MessageWriter
	breaker *circuitbreaker.Breaker
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		breaker: circuitbreaker.New(circuitbreaker.Settings{Name: "kafka-finalized"}),
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Type != EventCartFinalized {
		return nil
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Room), // cart id keeps a cart's events ordered
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}

	err = k.breaker.Do(func() error {
		return k.writer.WriteMessages(ctx, msg)
	})
	metrics.NotificationResult("kafka", ev.Type, err)
	if err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
