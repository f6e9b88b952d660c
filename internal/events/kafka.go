package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"RifasCuba/internal/metrics"
)

// KafkaPublisher writes events asynchronously; write failures are logged from
// the writer's completion callback.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}
	if topic == "" {
		topic = TopicLedger
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				metrics.EventFailuresTotal.Add(float64(len(msgs)))
				log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	log.Info("kafka publisher ready", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(Wrap(e, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.EventType(), err)
	}
	msg := kafka.Message{Key: key(e), Value: value, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish event", zap.String("type", e.EventType()), zap.Error(err))
		return err
	}
	p.log.Debug("published event", zap.String("type", e.EventType()))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
