package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaRecord is the wire shape of one domain event on the Kafka topic.
type kafkaRecord struct {
	Event  string `json:"event"`
	PollID string `json:"pollId,omitempty"`
	Data   any    `json:"data"`
}

// KafkaPublisher mirrors domain events onto a Kafka topic, keyed by poll
// id so per-poll ordering survives partitioning. Publish failures are
// logged, never propagated: Kafka being down must not fail a vote.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 5 * time.Second,
		},
	}
}

func (p *KafkaPublisher) ToAll(event string, payload any) {
	p.publish("", event, payload)
}

func (p *KafkaPublisher) ToPoll(pollID string, event string, payload any) {
	p.publish(pollID, event, payload)
}

func (p *KafkaPublisher) publish(pollID, event string, payload any) {
	value, err := json.Marshal(kafkaRecord{Event: event, PollID: pollID, Data: payload})
	if err != nil {
		slog.Error("failed to encode kafka event", "event", event, "error", err)
		return
	}

	msg := kafka.Message{Value: value}
	if pollID != "" {
		msg.Key = []byte(pollID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to publish kafka event", "event", event, "pollID", pollID, "error", err)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
