// Package kafka publishes and consumes cache invalidation events over Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/vecstore/pkg/eventstream"
	"github.com/papercomputeco/vecstore/pkg/logger"
)

// DefaultTopic carries invalidation events when no topic is configured.
const DefaultTopic = "vecstore.invalidations"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// Publisher writes invalidation events keyed by collection, so events of one
// collection stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Publisher. No connection is made until the first
// publish.
func NewPublisher(c PublisherConfig) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(c.Brokers...),
			Topic:                  c.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: c.Logger,
	}, nil
}

// PublishInvalidation encodes and writes one event.
func (p *Publisher) PublishInvalidation(ctx context.Context, event *eventstream.InvalidationEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling invalidation event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Collection),
		Value: value,
	}); err != nil {
		return fmt.Errorf("publishing invalidation event: %w", err)
	}

	p.logger.Debug("published invalidation event",
		"event_type", event.EventType,
		"collection", event.Collection,
		"ids", len(event.IDs),
	)
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	Brokers []string
	Topic   string

	// GroupID must be unique per store instance so every instance sees
	// every event.
	GroupID string

	Logger *slog.Logger
}

// Subscriber reads invalidation events and hands them to a Handler.
type Subscriber struct {
	reader messageReader
	logger *slog.Logger
}

// NewSubscriber creates a Subscriber that starts at the newest offset.
func NewSubscriber(c SubscriberConfig) (*Subscriber, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if c.GroupID == "" {
		return nil, errors.New("kafka consumer group id is required")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Subscriber{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     c.Brokers,
			Topic:       c.Topic,
			GroupID:     c.GroupID,
			StartOffset: kafkago.LastOffset,
			MaxWait:     500 * time.Millisecond,
		}),
		logger: c.Logger,
	}, nil
}

// Run reads until ctx is canceled. Undecodable messages and handler errors
// are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, handle eventstream.Handler) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading invalidation event: %w", err)
		}

		var event eventstream.InvalidationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			s.logger.Warn("skipping undecodable invalidation event",
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}

		if err := handle(ctx, &event); err != nil {
			s.logger.Warn("failed to apply invalidation event",
				"event_id", event.EventID,
				"collection", event.Collection,
				"error", err,
			)
		}
	}
}

// Close leaves the consumer group.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}
