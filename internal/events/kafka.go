package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends events as JSON messages keyed by quotation number, so
// all events of one quotation land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Publish encodes e and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Number),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event %s for %s: %w", e.Type, e.Number, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
