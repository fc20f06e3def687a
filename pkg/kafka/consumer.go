package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicPrefix is the prefix shared by every topic on the bus.
const TopicPrefix = "ecommerce"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

const defaultHandlerRetries = 3

// Handler processes a single event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
	// Retries per message before it is dead-lettered (or dropped). Zero
	// means three.
	Retries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads events from one topic and dispatches them to a Handler.
type Consumer struct {
	reader    MessageReader
	topic     string
	group     string
	retries   int
	backoff   time.Duration
	handler   Handler
	dlq       *DLQProducer
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewConsumer creates a consumer backed by a kafka-go reader in group mode.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg, handler, logger)
}

// NewConsumerWithReader creates a consumer over an arbitrary reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultHandlerRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:  r,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		retries: retries,
		backoff: backoff,
		handler: handler,
		logger:  logger,
	}
}

// WithDLQ forwards messages that exhaust their retries to dlq.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start consumes until ctx is canceled. Every fetched message is committed
// exactly once: after success, after being dead-lettered, or when it cannot
// be decoded.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("topic", c.topic), slog.String("group", c.group))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if err := c.process(ctx, msg); err != nil && ctx.Err() != nil {
			return c.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event, skipping",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}

	hctx := extractTrace(ctx, &msg)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if lastErr = c.handler(hctx, event); lastErr == nil {
			consumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
			return nil
		}
		c.logger.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt == c.retries {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * c.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	consumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
	c.logger.Error("handler failed after all retries",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.Int64("offset", msg.Offset),
		slog.String("error", lastErr.Error()),
	)
	if c.dlq != nil {
		if err := c.dlq.Publish(ctx, msg, lastErr, c.group); err != nil {
			c.logger.Error("failed to dead-letter message", slog.String("error", err.Error()))
		}
	}
	return lastErr
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
