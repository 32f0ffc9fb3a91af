package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of kafka.Writer the publisher uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher exports change feed events to a Kafka topic.
// A nil *KafkaPublisher is valid and drops everything.
type KafkaPublisher struct {
	writer Writer
	topic  string
}

// NewKafkaPublisher returns nil when no brokers are configured
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 {
		log.Info().Msg("Kafka brokers not configured, chat event export disabled")
		return nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Str("topic", topic).Msg("Kafka export failed")
			}
		},
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Chat event export enabled")
	return NewPublisherWithWriter(w, topic)
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// Publish writes one event. Messages with the same key land on the same
// partition, so events of one room stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	if p == nil {
		return nil
	}
	if key == "" {
		return errors.New("events: empty key")
	}
	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
