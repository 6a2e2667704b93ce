package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	interfaces "github.com/sheikh-saqib/split-ledger-gateway/internal/interfaces"
)

// batchTimeout bounds how long a synchronous write waits for its batch to
// fill; kafka-go defaults to one second.
const batchTimeout = 10 * time.Millisecond

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

// NewPublisher writes to brokers. The topic is chosen per message.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish JSON-encodes event and writes it keyed by key, so one subject's
// events stay on one partition in commit order.
func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	msg, err := buildMessage(topic, key, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessage(topic, key string, event any) (kafka.Message, error) {
	if topic == "" {
		return kafka.Message{}, fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}, nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
