// Package kafka publishes interaction events to the evaluation data stream.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"miba-assist-go/pkg/log"
)

// InteractionEvent is the record published for every answered query and for
// every feedback update. Offline evaluation jobs consume this topic.
type InteractionEvent struct {
	InteractionID        string    `json:"interaction_id"`
	ChatID               string    `json:"chat_id"`
	Question             string    `json:"question"`
	PreprocessedQuestion string    `json:"preprocessed_question"`
	Answer               string    `json:"answer"`
	Contexts             []string  `json:"contexts"`
	SourceKeys           []string  `json:"source_keys"`
	Feedback             string    `json:"feedback"`
	Timestamp            time.Time `json:"timestamp"`
}

// Producer writes interaction events to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers, topic string) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Infof("kafka producer ready, topic '%s'", topic)
	return &Producer{writer: w}
}

// PublishInteraction sends one event. Failures are reported to the caller so
// they can be logged and dropped; the chat path never blocks on analytics.
func (p *Producer) PublishInteraction(ctx context.Context, event InteractionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ChatID),
		Value: eventBytes,
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
