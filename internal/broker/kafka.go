package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the order snapshot topic.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer}
}

// PublishEvent publishes an event to Kafka, keyed so that all snapshots
// for one order land on the same partition.
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer-group reader on the snapshot topic.
// Each process uses its own group so every process sees every snapshot.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{reader: reader}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until the context is cancelled, passing
// each to the handler. Handler errors are logged and the message is
// committed anyway: the feed is a stream of full snapshots, so a dropped
// one is superseded by the next.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	logger := util.GetLogger()
	logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("Error fetching message", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				logger.Warn("Error handling message", zap.Error(err))
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Warn("Error committing message", zap.Error(err))
			}
		}
	}
}
