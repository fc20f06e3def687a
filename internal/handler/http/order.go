package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/zaver-checkout/internal/service"
	"github.com/utafrali/zaver-checkout/pkg/httputil"
	"github.com/utafrali/zaver-checkout/pkg/logger"
	"github.com/utafrali/zaver-checkout/pkg/validator"
)

// maxBodyBytes bounds request bodies on the order API.
const maxBodyBytes = 1 << 20

// OrderHandler handles the order, checkout and staff endpoints.
type OrderHandler struct {
	orders   *service.OrderService
	payments *service.PaymentService
	refunds  *service.RefundService
	logger   *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, payments *service.PaymentService, refunds *service.RefundService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		refunds:  refunds,
		logger:   logger,
	}
}

// SyncResponse reports the order state after a manual sync.
type SyncResponse struct {
	Order *OrderResponse `json:"order"`
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.CreateOrderInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := newOrderResponse(o)
	resp.OrderKey = o.OrderKey
	httputil.WriteData(w, http.StatusCreated, resp)
}

// GetOrder handles GET /api/v1/orders/{id}?key=
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrderWithKey(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("key"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newOrderResponse(o))
}

// CreatePayment handles POST /api/v1/orders/{id}/payment?key=
func (h *OrderHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logger.WithOrderID(r.Context(), id)

	if _, err := h.orders.GetOrderWithKey(ctx, id, r.URL.Query().Get("key")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.payments.ProcessPayment(ctx, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, session)
}

// OrderReceived handles GET /checkout/order-received/{id}?key=, the page the
// shopper returns to from the payment widget. It redirects when the payment
// is still open, was cancelled or failed, and otherwise shows the order.
func (h *OrderHandler) OrderReceived(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logger.WithOrderID(r.Context(), id)

	key := r.URL.Query().Get("key")

	redirect, o, err := h.payments.HandleOrderReceived(ctx, id, key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	// Orders of other payment methods and paid orders skip reconciliation,
	// so the key has not been checked yet.
	if err := service.VerifyOrderKey(o, key); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newOrderResponse(o))
}

// CreateRefund handles POST /api/v1/orders/{id}/refunds (staff).
func (h *OrderHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")

	var req service.CreateRefundInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	refund, err := h.refunds.CreateRefund(logger.WithOrderID(r.Context(), id), id, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, newRefundResponse(refund))
}

// SyncOrder handles POST /api/v1/orders/{id}/sync (staff).
func (h *OrderHandler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.payments.SyncOrder(logger.WithOrderID(r.Context(), id), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, SyncResponse{Order: newOrderResponse(o)})
}

// CancelPayment handles POST /api/v1/orders/{id}/cancel-payment (staff).
func (h *OrderHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.payments.CancelPayment(logger.WithOrderID(r.Context(), id), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes handles GET /api/v1/orders/{id}/notes (staff).
func (h *OrderHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.orders.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, notes)
}
