package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stockroom/allocator/internal/core/domain"
)

const (
	defaultTopic = "allocation-outcomes"
	batchTimeout = 10 * time.Millisecond
)

// KafkaPublisher emits decided item outcomes to a Kafka topic. Messages are
// keyed by location so one location's outcomes stay ordered within a
// partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	if topic == "" {
		topic = defaultTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
		},
	}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, event domain.OutcomeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.LocationID),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
