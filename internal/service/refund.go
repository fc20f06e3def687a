package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/event"
	"github.com/utafrali/zaver-checkout/internal/pricing"
	"github.com/utafrali/zaver-checkout/internal/repository"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/tracing"
	"github.com/utafrali/zaver-checkout/pkg/validator"
)

// RefundService requests refunds from Zaver and reconciles refund updates.
type RefundService struct {
	repo     repository.OrderRepository
	provider zaver.RefundAPI
	urls     URLs
	hooks    *Hooks
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewRefundService creates a new refund service. hooks and producer may be
// nil.
func NewRefundService(
	repo repository.OrderRepository,
	provider zaver.RefundAPI,
	urls URLs,
	hooks *Hooks,
	producer *event.Producer,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		repo:     repo,
		provider: provider,
		urls:     urls,
		hooks:    hooks,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRefundInput holds the parameters for refunding an order.
type CreateRefundInput struct {
	Amount float64           `json:"amount" validate:"gt=0,cents"`
	Tax    float64           `json:"tax" validate:"gte=0,cents"`
	Reason string            `json:"reason" validate:"max=500"`
	Lines  []RefundLineInput `json:"lines" validate:"omitempty,dive"`
}

// RefundLineInput refunds (part of) one order line. Amounts are positive.
type RefundLineInput struct {
	LineID   string  `json:"line_id" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	Amount   float64 `json:"amount" validate:"gte=0,cents"`
	Tax      float64 `json:"tax" validate:"gte=0,cents"`
}

// CreateRefund records a refund on the order and requests it from Zaver.
func (s *RefundService) CreateRefund(ctx context.Context, orderID string, input *CreateRefundInput) (*domain.Refund, error) {
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for refund: %w", err)
	}
	if o.PaymentID() == "" {
		return nil, domain.MissingPaymentID(o.ID)
	}

	amount := pricing.RoundFloat(input.Amount)
	var refunded float64
	for _, r := range o.Refunds {
		refunded += r.AbsAmount()
	}
	if available := pricing.RoundFloat(o.Total - refunded); amount > available {
		return nil, apperrors.InvalidInput(fmt.Sprintf("refund amount %.2f exceeds the refundable amount %.2f", amount, available))
	}

	lines := make([]domain.Line, 0, len(input.Lines))
	for _, in := range input.Lines {
		line, err := refundLine(o, in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	refund := &domain.Refund{
		ID:        uuid.New().String(),
		OrderID:   o.ID,
		Amount:    amount,
		TotalTax:  -pricing.RoundFloat(input.Tax),
		Reason:    strings.TrimSpace(input.Reason),
		Lines:     lines,
		CreatedBy: representative(ctx),
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	s.logger.InfoContext(ctx, "refund created",
		slog.String("order_id", o.ID),
		slog.String("refund_id", refund.ID),
		slog.Float64("amount", refund.Amount),
	)

	return s.ProcessRefund(ctx, o.ID, refund.Amount)
}

// refundLine builds a refund line of the same kind as the order line it
// refunds. Refund lines carry negative quantities and amounts.
func refundLine(o *domain.Order, in RefundLineInput) (domain.Line, error) {
	ol := o.Line(in.LineID)
	if ol == nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order %s has no line %q", o.ID, in.LineID))
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty > ol.Base().Quantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("line %s: cannot refund %d of %d", in.LineID, qty, ol.Base().Quantity))
	}

	f := domain.Flatten(ol)
	f.Quantity = -qty
	f.Amount = -pricing.RoundFloat(in.Amount)
	f.Tax = -pricing.RoundFloat(in.Tax)
	f.ZaverLineItemID = ""
	return f.Line()
}

// ProcessRefund requests the most recent refund of amount on the order from
// Zaver and approves it on behalf of the staff member in ctx. Provider
// failures are recorded as order notes and do not fail the call; the refund
// is returned without a provider id in that case.
func (s *RefundService) ProcessRefund(ctx context.Context, orderID string, amount float64) (*domain.Refund, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for refund: %w", err)
	}

	rep := representative(ctx)
	req, refund, err := s.BuildRefundRequest(ctx, o, amount, rep)
	if err != nil {
		return nil, err
	}

	s.hooks.runBeforeRefundRequest(ctx, req, refund, o)

	if err := s.requestRefund(ctx, o, refund, req, rep); err != nil {
		refundRequestsTotal.WithLabelValues("failed").Inc()
		addNote(ctx, s.repo, s.logger, o.ID, "Failed to request a refund with reason: "+domain.Message(err))
		s.logger.ErrorContext(ctx, "failed to request zaver refund",
			slog.String("order_id", o.ID),
			slog.String("refund_id", refund.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.repo.SaveRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("save refund %s: %w", refund.ID, err)
	}
	return refund, nil
}

func (s *RefundService) requestRefund(ctx context.Context, o *domain.Order, refund *domain.Refund, req *zaver.RefundCreationRequest, rep string) error {
	resp, err := s.provider.CreateRefund(ctx, req)
	if err != nil {
		return err
	}

	refund.ZaverRefundID = resp.RefundID
	if err := s.repo.SaveRefund(ctx, refund); err != nil {
		s.logger.ErrorContext(ctx, "failed to store zaver refund id",
			slog.String("refund_id", refund.ID),
			slog.String("zaver_refund_id", resp.RefundID),
			slog.String("error", err.Error()),
		)
	}

	var approveErr error
	approved := false
	if rep != "" {
		if _, approveErr = s.provider.ApproveRefund(ctx, resp.RefundID, &zaver.RefundUpdateRequest{
			ActingRepresentative: zaver.MerchantRepresentative{Username: rep},
		}); approveErr == nil {
			approved = true
		}
	}

	result := "created"
	if approved {
		result = "approved"
	}
	refundRequestsTotal.WithLabelValues(result).Inc()

	amount, currency := resp.RefundAmount, resp.Currency
	if amount == 0 {
		amount = req.RefundAmount
	}
	if currency == "" {
		currency = o.Currency
	}
	addNote(ctx, s.repo, s.logger, o.ID, fmt.Sprintf("Requested a refund of %s - refund ID: %s",
		formatAmount(amount, currency), resp.RefundID))

	s.logger.InfoContext(ctx, "requested zaver refund",
		slog.String("order_id", o.ID),
		slog.String("refund_id", refund.ID),
		slog.String("zaver_refund_id", resp.RefundID),
		slog.Bool("approved", approved),
	)

	s.hooks.runAfterRefundRequest(ctx, req, refund, o)

	if s.producer != nil {
		if pubErr := s.producer.PublishRefundRequested(ctx, o, refund, approved); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish refund requested event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	if approveErr != nil {
		return fmt.Errorf("approve refund %s: %w", resp.RefundID, approveErr)
	}
	return nil
}

// HandleRefundEvent records a refund status update on o as an order note.
// Refund updates never change order totals or status.
func (s *RefundService) HandleRefundEvent(ctx context.Context, o *domain.Order, key string, ev *zaver.RefundResponse) (err error) {
	ctx, span := tracing.Start(ctx, "RefundService.HandleRefundEvent",
		attribute.String("order.id", o.ID),
	)
	defer func() { tracing.End(span, err) }()

	if err := VerifyOrderKey(o, key); err != nil {
		return err
	}
	if ev == nil || ev.RefundID == "" {
		return apperrors.InvalidInput("missing refund id")
	}

	paymentID := o.PaymentID()
	if paymentID == "" {
		return domain.MissingPaymentRecord(o.ID)
	}
	if ev.PaymentID != paymentID {
		return domain.PaymentIDMismatch(paymentID, ev.PaymentID)
	}
	if o.RefundByZaverID(ev.RefundID) == nil {
		return domain.RefundIDMismatch(ev.RefundID)
	}

	span.SetAttributes(attribute.String("zaver.refund_status", ev.Status))
	s.hooks.runRefundEvent(ctx, o, ev)

	refundEventsTotal.WithLabelValues(statusLabel(ev.Status, domain.ValidRefundStatuses()...)).Inc()

	if !domain.IsValidRefundStatus(ev.Status) {
		s.logger.WarnContext(ctx, "ignoring zaver refund status",
			slog.String("order_id", o.ID),
			slog.String("zaver_refund_id", ev.RefundID),
			slog.String("error", domain.UnknownStatus("refund", ev.Status).Error()),
		)
		return nil
	}

	note := refundNote(o, ev)
	addNote(ctx, s.repo, s.logger, o.ID, note)
	s.logger.InfoContext(ctx, note,
		slog.String("order_id", o.ID),
		slog.String("zaver_refund_id", ev.RefundID),
		slog.String("status", ev.Status),
	)

	if s.producer != nil {
		if pubErr := s.producer.PublishRefundUpdated(ctx, o.ID, ev); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish refund updated event",
				slog.String("order_id", o.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return nil
}

// refundNote returns the order note for a refund status, or "" for statuses
// without one.
func refundNote(o *domain.Order, ev *zaver.RefundResponse) string {
	currency := ev.Currency
	if currency == "" {
		currency = o.Currency
	}
	amount := formatAmount(ev.RefundAmount, currency)

	var b strings.Builder
	switch ev.Status {
	case domain.RefundStatusPendingMerchantApproval:
		fmt.Fprintf(&b, "Refund of %s initialized", amount)
		if user := ev.InitializedBy(); user != "" {
			fmt.Fprintf(&b, " by %s", user)
		}
		if ev.Description != "" {
			fmt.Fprintf(&b, " with the description \"%s\"", ev.Description)
		}
		fmt.Fprintf(&b, ". Refund ID: %s", ev.RefundID)
	case domain.RefundStatusPendingExecution:
		fmt.Fprintf(&b, "Refund of %s approved", amount)
		if user := ev.ApprovedBy(); user != "" {
			fmt.Fprintf(&b, " by %s", user)
		}
		fmt.Fprintf(&b, " - Refund ID: %s", ev.RefundID)
	case domain.RefundStatusExecuted:
		fmt.Fprintf(&b, "Refund of %s completed - Refund ID: %s", amount, ev.RefundID)
	case domain.RefundStatusCancelled:
		fmt.Fprintf(&b, "Refund of %s cancelled", amount)
		if user := ev.ApprovedBy(); user != "" {
			fmt.Fprintf(&b, " by %s", user)
		}
		fmt.Fprintf(&b, " - Refund ID: %s", ev.RefundID)
	}
	return b.String()
}

// HandleRefundCallback reconciles the order named in a refund callback. On
// failure the order is marked failed and the error is returned.
func (s *RefundService) HandleRefundCallback(ctx context.Context, key string, ev *zaver.RefundResponse) error {
	if ev == nil {
		return apperrors.InvalidInput("missing refund")
	}
	orderID := ev.MerchantMetadata[zaver.MetaOrderID]
	if orderID == "" {
		reconciliationFailuresTotal.WithLabelValues("refund_callback").Inc()
		s.logger.ErrorContext(ctx, "zaver refund callback without order id",
			slog.String("zaver_refund_id", ev.RefundID),
		)
		return apperrors.InvalidInput("missing order id in refund metadata")
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		reconciliationFailuresTotal.WithLabelValues("refund_callback").Inc()
		s.logger.ErrorContext(ctx, "failed to load order for zaver refund callback",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("get order for refund callback: %w", err)
	}

	if err := s.HandleRefundEvent(ctx, o, key, ev); err != nil {
		reconciliationFailuresTotal.WithLabelValues("refund_callback").Inc()
		s.logger.ErrorContext(ctx, "zaver refund reconciliation failed",
			slog.String("order_id", o.ID),
			slog.String("zaver_refund_id", ev.RefundID),
			slog.String("error", err.Error()),
		)
		if !errors.Is(err, apperrors.ErrUnauthorized) {
			markFailed(ctx, s.repo, s.logger, o, "Failed with Zaver refund: "+domain.Message(err))
		}
		return err
	}
	return nil
}
