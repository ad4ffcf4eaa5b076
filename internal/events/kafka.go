package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultPublishTimeout bounds one Kafka write so an unreachable broker
// cannot hold up the catalog write that produced the event.
const DefaultPublishTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by entity id
// so every change of one product lands on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

// NewKafkaPublisher creates a synchronous writer for brokers/topic.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		MaxAttempts:            3,
		WriteTimeout:           DefaultPublishTimeout,
	}
	return &KafkaPublisher{writer: writer, topic: topic, timeout: DefaultPublishTimeout, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := buildMessage(e)
	if err != nil {
		return err
	}

	timeout := p.timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	p.log.Debug("published event", zap.String("topic", p.topic), zap.String("type", string(e.Type)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(e Event) (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(e.Entity + ":" + e.EntityID),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "entity", Value: []byte(e.Entity)},
			{Key: "timestamp", Value: []byte(e.Timestamp.Format(time.RFC3339))},
			{Key: "content_type", Value: []byte("application/json")},
			{Key: "producer", Value: []byte("altessa-catalog")},
		},
	}, nil
}
