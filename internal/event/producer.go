package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	pkgkafka "github.com/utafrali/zaver-checkout/pkg/kafka"
	"github.com/utafrali/zaver-checkout/pkg/logger"
)

// Kafka topic constants for Zaver reconciliation events.
const (
	TopicPaymentCreated   = "ecommerce.zaver.payment.created"
	TopicPaymentSettled   = "ecommerce.zaver.payment.settled"
	TopicPaymentCancelled = "ecommerce.zaver.payment.cancelled"
	TopicPaymentFailed    = "ecommerce.zaver.payment.failed"
	TopicRefundRequested  = "ecommerce.zaver.refund.requested"
	TopicRefundUpdated    = "ecommerce.zaver.refund.updated"
)

// Aggregate type constant. Events are keyed by order id.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceZaverCheckout = "zaver-checkout"

// PaymentCreatedData is the payload for a payment.created event.
type PaymentCreatedData struct {
	OrderID         string    `json:"order_id"`
	PaymentID       string    `json:"payment_id"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	TokenValidUntil time.Time `json:"token_valid_until"`
}

// PaymentSettledData is the payload for a payment.settled event.
type PaymentSettledData struct {
	OrderID        string  `json:"order_id"`
	PaymentID      string  `json:"payment_id"`
	Amount         float64 `json:"amount"`
	CapturedAmount float64 `json:"captured_amount"`
	Currency       string  `json:"currency"`
}

// PaymentClosedData is the payload for payment.cancelled and payment.failed
// events.
type PaymentClosedData struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RefundRequestedData is the payload for a refund.requested event.
type RefundRequestedData struct {
	OrderID       string  `json:"order_id"`
	RefundID      string  `json:"refund_id"`
	ZaverRefundID string  `json:"zaver_refund_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Approved      bool    `json:"approved"`
}

// RefundUpdatedData is the payload for a refund.updated event.
type RefundUpdatedData struct {
	OrderID       string  `json:"order_id"`
	ZaverRefundID string  `json:"zaver_refund_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// Producer publishes reconciliation events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, orderID, AggregateTypeOrder, SourceZaverCheckout, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("order_id", orderID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// PublishPaymentCreated publishes a payment.created event.
func (p *Producer) PublishPaymentCreated(ctx context.Context, order *domain.Order) error {
	data := PaymentCreatedData{
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: order.Currency,
	}
	if order.Payment != nil {
		data.PaymentID = order.Payment.ID
		data.TokenValidUntil = order.Payment.TokenValidUntil
	}
	return p.publish(ctx, TopicPaymentCreated, order.ID, data)
}

// PublishPaymentSettled publishes a payment.settled event.
func (p *Producer) PublishPaymentSettled(ctx context.Context, orderID string, status *zaver.PaymentStatusResponse) error {
	return p.publish(ctx, TopicPaymentSettled, orderID, PaymentSettledData{
		OrderID:        orderID,
		PaymentID:      status.PaymentID,
		Amount:         status.Amount,
		CapturedAmount: status.CapturedAmount,
		Currency:       status.Currency,
	})
}

// PublishPaymentCancelled publishes a payment.cancelled event.
func (p *Producer) PublishPaymentCancelled(ctx context.Context, orderID, paymentID string) error {
	return p.publish(ctx, TopicPaymentCancelled, orderID, PaymentClosedData{
		OrderID:   orderID,
		PaymentID: paymentID,
	})
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, orderID, paymentID, reason string) error {
	return p.publish(ctx, TopicPaymentFailed, orderID, PaymentClosedData{
		OrderID:   orderID,
		PaymentID: paymentID,
		Reason:    reason,
	})
}

// PublishRefundRequested publishes a refund.requested event.
func (p *Producer) PublishRefundRequested(ctx context.Context, order *domain.Order, refund *domain.Refund, approved bool) error {
	return p.publish(ctx, TopicRefundRequested, order.ID, RefundRequestedData{
		OrderID:       order.ID,
		RefundID:      refund.ID,
		ZaverRefundID: refund.ZaverRefundID,
		Amount:        refund.AbsAmount(),
		Currency:      order.Currency,
		Approved:      approved,
	})
}

// PublishRefundUpdated publishes a refund.updated event.
func (p *Producer) PublishRefundUpdated(ctx context.Context, orderID string, refund *zaver.RefundResponse) error {
	return p.publish(ctx, TopicRefundUpdated, orderID, RefundUpdatedData{
		OrderID:       orderID,
		ZaverRefundID: refund.RefundID,
		Status:        refund.Status,
		Amount:        refund.RefundAmount,
		Currency:      refund.Currency,
	})
}
