package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/event"
	"github.com/utafrali/zaver-checkout/internal/repository"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/tracing"
)

// PaymentService reconciles orders with Zaver payments.
type PaymentService struct {
	repo          repository.OrderRepository
	provider      zaver.PaymentAPI
	builder       *PaymentRequestBuilder
	urls          URLs
	paymentMethod string
	hooks         *Hooks
	producer      *event.Producer
	logger        *slog.Logger
	now           func() time.Time
}

// NewPaymentService creates a new payment service. paymentMethod is the
// payment method prefix whose orders are reconciled on the order-received
// redirect. hooks and producer may be nil.
func NewPaymentService(
	repo repository.OrderRepository,
	provider zaver.PaymentAPI,
	urls URLs,
	paymentMethod string,
	hooks *Hooks,
	producer *event.Producer,
	logger *slog.Logger,
) *PaymentService {
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodPrefix
	}
	return &PaymentService{
		repo:          repo,
		provider:      provider,
		builder:       NewPaymentRequestBuilder(urls, hooks),
		urls:          urls,
		paymentMethod: paymentMethod,
		hooks:         hooks,
		producer:      producer,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PaymentSession is what the storefront needs to render the payment widget.
type PaymentSession struct {
	OrderID     string    `json:"order_id"`
	PaymentID   string    `json:"payment_id"`
	Token       string    `json:"token"`
	ValidUntil  time.Time `json:"valid_until"`
	PaymentURL  string    `json:"payment_url"`
	PaymentLink string    `json:"payment_link,omitempty"`
}

// ProcessPayment creates a Zaver payment for the order and stores the
// resulting payment record. A previous payment record is replaced.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID string) (*PaymentSession, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for payment: %w", err)
	}
	if !o.UsesPaymentMethod(s.paymentMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order %s is not paid with Zaver", o.ID))
	}
	if !o.NeedsPayment() {
		return nil, apperrors.Conflict(fmt.Sprintf("order %s does not need payment", o.ID))
	}

	req, err := s.builder.Build(ctx, o)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.CreatePayment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create zaver payment for order %s: %w", o.ID, err)
	}

	o.Payment = &domain.PaymentRecord{
		ID:              resp.PaymentID,
		Token:           resp.Token,
		TokenValidUntil: resp.ValidUntil,
	}
	for _, item := range resp.LineItems {
		if line := o.Line(item.MerchantMetadata[zaver.MetaOrderItemID]); line != nil {
			line.Base().ZaverLineItemID = item.ID
		}
	}

	if err := s.repo.SavePayment(ctx, o); err != nil {
		return nil, fmt.Errorf("save payment for order %s: %w", o.ID, err)
	}

	s.hooks.runAfterPaymentCreated(ctx, req, o, resp)

	s.logger.DebugContext(ctx, "created zaver payment",
		slog.String("order_id", o.ID),
		slog.String("payment_id", resp.PaymentID),
		slog.Time("valid_until", resp.ValidUntil),
	)

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentCreated(ctx, o); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment created event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return &PaymentSession{
		OrderID:     o.ID,
		PaymentID:   resp.PaymentID,
		Token:       resp.Token,
		ValidUntil:  resp.ValidUntil,
		PaymentURL:  s.urls.OrderPay(o),
		PaymentLink: resp.PaymentLink,
	}, nil
}

// HandlePaymentEvent reconciles o with a payment status. When ev is nil the
// status is fetched from the provider. The returned URL is non-empty only
// when allowRedirect is set and the shopper should be sent elsewhere.
func (s *PaymentService) HandlePaymentEvent(
	ctx context.Context,
	o *domain.Order,
	key string,
	ev *zaver.PaymentStatusResponse,
	allowRedirect bool,
) (redirect string, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.HandlePaymentEvent",
		attribute.String("order.id", o.ID),
		attribute.Bool("zaver.allow_redirect", allowRedirect),
	)
	defer func() { tracing.End(span, err) }()

	if !o.NeedsPayment() {
		return "", nil
	}
	if err := VerifyOrderKey(o, key); err != nil {
		return "", err
	}

	paymentID := o.PaymentID()
	if paymentID == "" {
		return "", domain.MissingPaymentRecord(o.ID)
	}

	source := eventSource(ev, allowRedirect)
	if ev == nil {
		ev, err = s.provider.GetPaymentStatus(ctx, paymentID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrServiceUnavail) {
				err = domain.ProviderUnavailable("get payment status", err)
			}
			return "", err
		}
	} else if ev.PaymentID != paymentID {
		return "", domain.PaymentIDMismatch(paymentID, ev.PaymentID)
	}

	span.SetAttributes(attribute.String("zaver.payment_status", ev.PaymentStatus))
	s.hooks.runPaymentEvent(ctx, o, ev, allowRedirect)

	paymentEventsTotal.WithLabelValues(
		statusLabel(ev.PaymentStatus, domain.PaymentStatusCreated, domain.PaymentStatusSettled, domain.PaymentStatusCancelled),
		source,
	).Inc()

	switch ev.PaymentStatus {
	case domain.PaymentStatusSettled:
		return "", s.settle(ctx, o, ev)

	case domain.PaymentStatusCancelled:
		if allowRedirect {
			return s.urls.Cancel(o), nil
		}
		return "", s.cancelOrder(ctx, o, ev.PaymentID)

	case domain.PaymentStatusCreated:
		if allowRedirect {
			return s.urls.OrderPay(o), nil
		}
		return "", nil

	default:
		s.logger.WarnContext(ctx, "ignoring zaver payment status",
			slog.String("order_id", o.ID),
			slog.String("payment_id", ev.PaymentID),
			slog.String("error", domain.UnknownStatus("payment", ev.PaymentStatus).Error()),
		)
		return "", nil
	}
}

func (s *PaymentService) settle(ctx context.Context, o *domain.Order, ev *zaver.PaymentStatusResponse) error {
	paidAt := s.now()
	applied, err := s.repo.MarkPaid(ctx, o.ID, ev.PaymentID, paidAt)
	if err != nil {
		return fmt.Errorf("mark order %s paid: %w", o.ID, err)
	}
	if !applied {
		s.logger.DebugContext(ctx, "order already marked paid",
			slog.String("order_id", o.ID),
			slog.String("payment_id", ev.PaymentID),
		)
		return nil
	}

	o.Status = domain.OrderStatusProcessing
	o.TransactionID = ev.PaymentID
	o.PaidAt = &paidAt

	s.addNote(ctx, o.ID, fmt.Sprintf("Successful payment with Zaver - payment ID: %s", ev.PaymentID))

	s.logger.InfoContext(ctx, "successful payment with zaver",
		slog.String("order_id", o.ID),
		slog.String("payment_id", ev.PaymentID),
	)

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentSettled(ctx, o.ID, ev); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment settled event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return nil
}

func (s *PaymentService) cancelOrder(ctx context.Context, o *domain.Order, paymentID string) error {
	if err := s.repo.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled); err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	o.Status = domain.OrderStatusCancelled

	s.addNote(ctx, o.ID, "Zaver payment was cancelled - cancelling order")

	s.logger.InfoContext(ctx, "zaver payment was cancelled - cancelling order",
		slog.String("order_id", o.ID),
		slog.String("payment_id", paymentID),
	)

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentCancelled(ctx, o.ID, paymentID); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment cancelled event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return nil
}

// HandlePaymentCallback reconciles the order named in a payment callback.
// On failure the order is marked failed and the error is returned.
func (s *PaymentService) HandlePaymentCallback(ctx context.Context, key string, ev *zaver.PaymentStatusResponse) error {
	if ev == nil {
		return apperrors.InvalidInput("missing payment status")
	}
	orderID := ev.MerchantMetadata[zaver.MetaOrderID]
	if orderID == "" {
		reconciliationFailuresTotal.WithLabelValues("payment_callback").Inc()
		s.logger.ErrorContext(ctx, "zaver payment callback without order id",
			slog.String("payment_id", ev.PaymentID),
		)
		return apperrors.InvalidInput("missing order id in payment metadata")
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		reconciliationFailuresTotal.WithLabelValues("payment_callback").Inc()
		s.logger.ErrorContext(ctx, "failed to load order for zaver payment callback",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("get order for payment callback: %w", err)
	}

	if _, err := s.HandlePaymentEvent(ctx, o, key, ev, false); err != nil {
		reconciliationFailuresTotal.WithLabelValues("payment_callback").Inc()
		s.failOrder(ctx, o, err)
		return err
	}
	return nil
}

// HandleOrderReceived reconciles an order when the shopper returns to the
// store. It returns the URL to redirect to, or "" to show the order as is.
// A failed reconciliation marks the order failed and redirects to checkout
// with an error notice.
func (s *PaymentService) HandleOrderReceived(ctx context.Context, orderID, key string) (string, *domain.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return "", nil, fmt.Errorf("get order for order-received page: %w", err)
	}
	if !o.UsesPaymentMethod(s.paymentMethod) {
		return "", o, nil
	}

	redirect, err := s.HandlePaymentEvent(ctx, o, key, nil, true)
	if err != nil {
		reconciliationFailuresTotal.WithLabelValues("order_received").Inc()
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.logger.WarnContext(ctx, "rejected order-received request",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			return "", nil, err
		}
		s.failOrder(ctx, o, err)
		return s.urls.CheckoutError(), o, nil
	}
	return redirect, o, nil
}

// SyncOrder fetches the payment status from Zaver and reconciles the order
// with it. It returns the order as stored afterwards.
func (s *PaymentService) SyncOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for sync: %w", err)
	}

	if _, err := s.HandlePaymentEvent(ctx, o, o.OrderKey, nil, false); err != nil {
		reconciliationFailuresTotal.WithLabelValues("sync").Inc()
		s.logger.ErrorContext(ctx, "failed to sync order with zaver",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "synced order with zaver",
		slog.String("order_id", o.ID),
		slog.String("status", o.Status),
	)
	return o, nil
}

// CancelPayment cancels the Zaver payment of an order that has been
// cancelled in the store. Orders without a pending Zaver payment are ignored.
func (s *PaymentService) CancelPayment(ctx context.Context, orderID string) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "ignoring cancellation of unknown order",
				slog.String("order_id", orderID),
			)
			return nil
		}
		return fmt.Errorf("get order for payment cancellation: %w", err)
	}

	paymentID := o.PaymentID()
	if !o.UsesPaymentMethod(s.paymentMethod) || paymentID == "" || o.PaidAt != nil {
		return nil
	}

	if _, err := s.provider.CancelPayment(ctx, paymentID); err != nil {
		s.addNote(ctx, o.ID, "Failed to cancel Zaver payment: "+domain.Message(err))
		s.logger.ErrorContext(ctx, "failed to cancel zaver payment",
			slog.String("order_id", o.ID),
			slog.String("payment_id", paymentID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("cancel zaver payment %s: %w", paymentID, err)
	}

	s.addNote(ctx, o.ID, "Cancelled Zaver payment")
	s.logger.InfoContext(ctx, "cancelled zaver payment",
		slog.String("order_id", o.ID),
		slog.String("payment_id", paymentID),
	)

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentCancelled(ctx, o.ID, paymentID); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment cancelled event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return nil
}

// failOrder marks o failed after a reconciliation error. Requests that failed
// authentication leave the order untouched.
func (s *PaymentService) failOrder(ctx context.Context, o *domain.Order, cause error) {
	s.logger.ErrorContext(ctx, "zaver payment reconciliation failed",
		slog.String("order_id", o.ID),
		slog.String("error", cause.Error()),
	)
	if errors.Is(cause, apperrors.ErrUnauthorized) {
		return
	}

	markFailed(ctx, s.repo, s.logger, o, "Failed with Zaver payment: "+domain.Message(cause))

	if s.producer != nil {
		if pubErr := s.producer.PublishPaymentFailed(ctx, o.ID, o.PaymentID(), domain.Message(cause)); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment failed event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
}

func (s *PaymentService) addNote(ctx context.Context, orderID, content string) {
	addNote(ctx, s.repo, s.logger, orderID, content)
}

func eventSource(ev *zaver.PaymentStatusResponse, allowRedirect bool) string {
	switch {
	case allowRedirect:
		return sourceRedirect
	case ev != nil:
		return sourceCallback
	default:
		return sourceSync
	}
}
