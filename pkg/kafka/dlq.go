package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix prefixes every dead-letter topic.
const DLQTopicPrefix = TopicPrefix + ".dlq"

// DLQTopic returns the dead-letter topic for originalTopic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// DLQProducer forwards messages that exhausted their retries.
type DLQProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewDLQProducer creates a DLQ producer over w.
func NewDLQProducer(w MessageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger}
}

// DLQ returns a DLQ producer sharing p's writer.
func (p *Producer) DLQ() *DLQProducer {
	return NewDLQProducer(p.writer, p.logger)
}

// Publish copies msg to its DLQ topic with the failure recorded in headers.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, lastErr error, group string) error {
	topic := DLQTopic(msg.Topic)

	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(group)},
	)
	if lastErr != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(lastErr.Error())})
	}

	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("publish to DLQ %s: %w", topic, err)
	}

	d.logger.WarnContext(ctx, "message sent to DLQ",
		slog.String("dlq_topic", topic),
		slog.Int64("offset", msg.Offset),
	)
	return nil
}
