package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/zaver-checkout/pkg/kafka"
	"github.com/utafrali/zaver-checkout/pkg/logger"
)

// TopicOrderCanceled is published by the order service when an order is
// cancelled.
const TopicOrderCanceled = "ecommerce.order.canceled"

// ConsumerGroupID for this service.
const ConsumerGroupID = "zaver-checkout"

// OrderCanceledData is the payload of an order.canceled event.
type OrderCanceledData struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// PaymentCanceller cancels the provider payment of an order.
type PaymentCanceller interface {
	CancelPayment(ctx context.Context, orderID string) error
}

// ConsumerHandler routes incoming Kafka events to the payment service.
type ConsumerHandler struct {
	payments PaymentCanceller
	logger   *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(payments PaymentCanceller, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		payments: payments,
		logger:   logger,
	}
}

// Handle processes an incoming Kafka event based on its event type.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOrderCanceled:
		return h.handleOrderCanceled(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCanceledData
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.ErrorContext(ctx, "malformed order.canceled payload, dropping",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if data.OrderID == "" {
		data.OrderID = event.AggregateID
	}
	if data.OrderID == "" {
		h.logger.WarnContext(ctx, "order.canceled event without order id",
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}
	ctx = logger.WithOrderID(ctx, data.OrderID)

	if err := h.payments.CancelPayment(ctx, data.OrderID); err != nil {
		return fmt.Errorf("cancel payment for order %s: %w", data.OrderID, err)
	}

	h.logger.InfoContext(ctx, "processed order.canceled event",
		slog.String("event_id", event.EventID),
		slog.String("order_id", data.OrderID),
		slog.String("reason", data.Reason),
	)
	return nil
}

// NewOrderCanceledConsumer creates the order.canceled consumer. Duplicate
// deliveries are filtered through store; messages that keep failing go to
// dlq when it is non-nil.
func NewOrderCanceledConsumer(brokers []string, handler *ConsumerHandler, store pkgkafka.IdempotencyStore, dlq *pkgkafka.DLQProducer, logger *slog.Logger) *pkgkafka.Consumer {
	cfg := pkgkafka.ConsumerConfig{
		Brokers:  brokers,
		GroupID:  ConsumerGroupID,
		Topic:    TopicOrderCanceled,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	return pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, handler.Handle, logger), logger).
		WithDLQ(dlq)
}
