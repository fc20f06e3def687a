// Package mock provides an in-memory Zaver provider for development.
package mock

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// tokenTTL is how long a mock payment token stays valid.
const tokenTTL = time.Hour

// Provider keeps payments and refunds in memory. New payments start as
// CREATED; use SetPaymentStatus to simulate the shopper's action.
type Provider struct {
	mu            sync.Mutex
	payments      map[string]*zaver.PaymentStatusResponse
	refunds       map[string]*zaver.RefundResponse
	callbackToken string
	now           func() time.Time
}

var _ zaver.Provider = (*Provider)(nil)

// NewProvider creates an empty mock provider. A non-empty callbackToken is
// enforced on received callbacks.
func NewProvider(callbackToken string) *Provider {
	return &Provider{
		payments:      make(map[string]*zaver.PaymentStatusResponse),
		refunds:       make(map[string]*zaver.RefundResponse),
		callbackToken: callbackToken,
		now:           time.Now,
	}
}

// CreatePayment registers a CREATED payment and assigns line item ids.
func (p *Provider) CreatePayment(_ context.Context, req *zaver.PaymentCreationRequest) (*zaver.PaymentCreationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := "mock_pay_" + uuid.NewString()
	validUntil := p.now().Add(tokenTTL).UTC()

	items := make([]zaver.LineItem, len(req.LineItems))
	for i, li := range req.LineItems {
		li.ID = "mock_li_" + uuid.NewString()
		items[i] = li
	}

	p.payments[id] = &zaver.PaymentStatusResponse{
		PaymentID:                id,
		PaymentStatus:            domain.PaymentStatusCreated,
		Amount:                   req.Amount,
		Currency:                 req.Currency,
		MerchantPaymentReference: req.MerchantPaymentReference,
		MerchantMetadata:         req.MerchantMetadata,
		ValidUntil:               &validUntil,
	}

	return &zaver.PaymentCreationResponse{
		PaymentID:     id,
		Token:         "mock_tok_" + uuid.NewString(),
		ValidUntil:    validUntil,
		PaymentStatus: domain.PaymentStatusCreated,
		LineItems:     items,
	}, nil
}

// GetPaymentStatus returns a copy of the stored payment.
func (p *Provider) GetPaymentStatus(_ context.Context, paymentID string) (*zaver.PaymentStatusResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[paymentID]
	if !ok {
		return nil, apperrors.NotFound("zaver payment", paymentID)
	}
	out := *pay
	return &out, nil
}

// CancelPayment cancels a payment unless it has settled.
func (p *Provider) CancelPayment(_ context.Context, paymentID string) (*zaver.PaymentStatusResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[paymentID]
	if !ok {
		return nil, apperrors.NotFound("zaver payment", paymentID)
	}
	if pay.PaymentStatus == domain.PaymentStatusSettled {
		return nil, apperrors.Conflict("zaver: settled payments cannot be cancelled")
	}
	pay.PaymentStatus = domain.PaymentStatusCancelled
	out := *pay
	return &out, nil
}

// SetPaymentStatus changes the status of a stored payment.
func (p *Provider) SetPaymentStatus(paymentID, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[paymentID]
	if !ok {
		return apperrors.NotFound("zaver payment", paymentID)
	}
	pay.PaymentStatus = status
	if status == domain.PaymentStatusSettled {
		pay.CapturedAmount = pay.Amount
	}
	return nil
}

// CreateRefund registers a refund pending merchant approval.
func (p *Provider) CreateRefund(_ context.Context, req *zaver.RefundCreationRequest) (*zaver.RefundResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[req.PaymentID]
	if !ok {
		return nil, apperrors.NotFound("zaver payment", req.PaymentID)
	}
	if pay.PaymentStatus != domain.PaymentStatusSettled {
		return nil, apperrors.Conflict("zaver: only settled payments can be refunded")
	}
	if req.RefundAmount > pay.CapturedAmount-pay.RefundedAmount {
		return nil, apperrors.InvalidInput("zaver: refund amount exceeds refundable amount")
	}

	refund := &zaver.RefundResponse{
		RefundID:                   "mock_ref_" + uuid.NewString(),
		PaymentID:                  req.PaymentID,
		Status:                     domain.RefundStatusPendingMerchantApproval,
		RefundAmount:               req.RefundAmount,
		Currency:                   pay.Currency,
		Description:                req.Description,
		InitializingRepresentative: req.InitializingRepresentative,
		MerchantMetadata:           req.MerchantMetadata,
	}
	p.refunds[refund.RefundID] = refund

	out := *refund
	return &out, nil
}

// ApproveRefund moves a pending refund to PENDING_EXECUTION.
func (p *Provider) ApproveRefund(_ context.Context, refundID string, req *zaver.RefundUpdateRequest) (*zaver.RefundResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	refund, ok := p.refunds[refundID]
	if !ok {
		return nil, apperrors.NotFound("zaver refund", refundID)
	}
	if refund.Status != domain.RefundStatusPendingMerchantApproval {
		return nil, apperrors.Conflict("zaver: refund is not pending approval")
	}
	refund.Status = domain.RefundStatusPendingExecution
	rep := req.ActingRepresentative
	refund.ApprovingRepresentative = &rep
	p.payments[refund.PaymentID].RefundedAmount += refund.RefundAmount

	out := *refund
	return &out, nil
}

// ReceivePaymentCallback authenticates and decodes a payment callback.
func (p *Provider) ReceivePaymentCallback(r *http.Request) (*zaver.PaymentStatusResponse, error) {
	return zaver.DecodePaymentCallback(r, p.callbackToken)
}

// ReceiveRefundCallback authenticates and decodes a refund callback.
func (p *Provider) ReceiveRefundCallback(r *http.Request) (*zaver.RefundResponse, error) {
	return zaver.DecodeRefundCallback(r, p.callbackToken)
}
