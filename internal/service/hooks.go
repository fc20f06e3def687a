package service

import (
	"context"
	"sync"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/zaver"
)

// Observer signatures for the extension points around provider calls.
// Observers may mutate the request they receive.
type (
	BeforePaymentRequestFunc func(ctx context.Context, req *zaver.PaymentCreationRequest, o *domain.Order)
	AfterPaymentCreatedFunc  func(ctx context.Context, req *zaver.PaymentCreationRequest, o *domain.Order, resp *zaver.PaymentCreationResponse)
	PaymentEventFunc         func(ctx context.Context, o *domain.Order, ev *zaver.PaymentStatusResponse, allowRedirect bool)
	BeforeRefundRequestFunc  func(ctx context.Context, req *zaver.RefundCreationRequest, refund *domain.Refund, o *domain.Order)
	AfterRefundRequestFunc   func(ctx context.Context, req *zaver.RefundCreationRequest, refund *domain.Refund, o *domain.Order)
	RefundEventFunc          func(ctx context.Context, o *domain.Order, ev *zaver.RefundResponse)
)

// Hooks holds ordered observer lists. The zero value has no observers; a nil
// *Hooks is valid and runs nothing.
type Hooks struct {
	mu                   sync.RWMutex
	beforePaymentRequest []BeforePaymentRequestFunc
	afterPaymentCreated  []AfterPaymentCreatedFunc
	paymentEvent         []PaymentEventFunc
	beforeRefundRequest  []BeforeRefundRequestFunc
	afterRefundRequest   []AfterRefundRequestFunc
	refundEvent          []RefundEventFunc
}

// OnBeforePaymentRequest registers fn to run after a payment request is
// assembled and before it is returned by the builder.
func (h *Hooks) OnBeforePaymentRequest(fn BeforePaymentRequestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforePaymentRequest = append(h.beforePaymentRequest, fn)
}

// OnAfterPaymentCreated registers fn to run once the provider response has
// been stored on the order.
func (h *Hooks) OnAfterPaymentCreated(fn AfterPaymentCreatedFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterPaymentCreated = append(h.afterPaymentCreated, fn)
}

// OnPaymentEvent registers fn to run before a payment status is dispatched.
func (h *Hooks) OnPaymentEvent(fn PaymentEventFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paymentEvent = append(h.paymentEvent, fn)
}

// OnBeforeRefundRequest registers fn to run before a refund is sent.
func (h *Hooks) OnBeforeRefundRequest(fn BeforeRefundRequestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeRefundRequest = append(h.beforeRefundRequest, fn)
}

// OnAfterRefundRequest registers fn to run after the provider accepted a
// refund.
func (h *Hooks) OnAfterRefundRequest(fn AfterRefundRequestFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterRefundRequest = append(h.afterRefundRequest, fn)
}

// OnRefundEvent registers fn to run before a refund status is dispatched.
func (h *Hooks) OnRefundEvent(fn RefundEventFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refundEvent = append(h.refundEvent, fn)
}

func (h *Hooks) runBeforePaymentRequest(ctx context.Context, req *zaver.PaymentCreationRequest, o *domain.Order) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.beforePaymentRequest {
		fn(ctx, req, o)
	}
}

func (h *Hooks) runAfterPaymentCreated(ctx context.Context, req *zaver.PaymentCreationRequest, o *domain.Order, resp *zaver.PaymentCreationResponse) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.afterPaymentCreated {
		fn(ctx, req, o, resp)
	}
}

func (h *Hooks) runPaymentEvent(ctx context.Context, o *domain.Order, ev *zaver.PaymentStatusResponse, allowRedirect bool) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.paymentEvent {
		fn(ctx, o, ev, allowRedirect)
	}
}

func (h *Hooks) runBeforeRefundRequest(ctx context.Context, req *zaver.RefundCreationRequest, refund *domain.Refund, o *domain.Order) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.beforeRefundRequest {
		fn(ctx, req, refund, o)
	}
}

func (h *Hooks) runAfterRefundRequest(ctx context.Context, req *zaver.RefundCreationRequest, refund *domain.Refund, o *domain.Order) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.afterRefundRequest {
		fn(ctx, req, refund, o)
	}
}

func (h *Hooks) runRefundEvent(ctx context.Context, o *domain.Order, ev *zaver.RefundResponse) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.refundEvent {
		fn(ctx, o, ev)
	}
}
