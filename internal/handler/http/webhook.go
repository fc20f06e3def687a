package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/zaver-checkout/internal/service"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/httputil"
	"github.com/utafrali/zaver-checkout/pkg/logger"
)

// WebhookHandler receives payment and refund callbacks from Zaver.
type WebhookHandler struct {
	provider zaver.Provider
	payments *service.PaymentService
	refunds  *service.RefundService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(provider zaver.Provider, payments *service.PaymentService, refunds *service.RefundService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		provider: provider,
		payments: payments,
		refunds:  refunds,
		logger:   logger,
	}
}

// PaymentCallback handles POST /wc-api/zaver_payment_callback?key=
func (h *WebhookHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	ev, err := h.provider.ReceivePaymentCallback(r)
	if err != nil {
		h.rejectCallback(w, r, err)
		return
	}

	ctx := r.Context()
	if orderID := ev.MerchantMetadata[zaver.MetaOrderID]; orderID != "" {
		ctx = logger.WithOrderID(ctx, orderID)
	}

	if err := h.payments.HandlePaymentCallback(ctx, r.URL.Query().Get("key"), ev); err != nil {
		writeCallbackFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RefundCallback handles POST /wc-api/zaver_refund_callback?key=
func (h *WebhookHandler) RefundCallback(w http.ResponseWriter, r *http.Request) {
	ev, err := h.provider.ReceiveRefundCallback(r)
	if err != nil {
		h.rejectCallback(w, r, err)
		return
	}

	ctx := r.Context()
	if orderID := ev.MerchantMetadata[zaver.MetaOrderID]; orderID != "" {
		ctx = logger.WithOrderID(ctx, orderID)
	}

	if err := h.refunds.HandleRefundCallback(ctx, r.URL.Query().Get("key"), ev); err != nil {
		writeCallbackFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// rejectCallback answers a callback that could not be authenticated or
// decoded.
func (h *WebhookHandler) rejectCallback(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "rejected zaver callback",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, zaver.ErrInvalidCallbackToken) {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeCallbackFailure(w, r, err)
}

// writeCallbackFailure answers a failed callback with 400 so the provider
// sees the delivery as failed.
func writeCallbackFailure(w http.ResponseWriter, r *http.Request, err error) {
	code, message := "CALLBACK_FAILED", err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
	}
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      code,
			Message:   message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
