package domain

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// Reconciliation sentinels. Every error built below wraps one of these.
var (
	ErrMissingPaymentRecord = errors.New("missing payment record")
	ErrMissingPaymentID     = errors.New("missing payment id")
	ErrPaymentIDMismatch    = errors.New("payment id mismatch")
	ErrRefundIDMismatch     = errors.New("refund id mismatch")
	ErrRefundNotFound       = errors.New("refund not found")
	ErrUnknownStatus        = errors.New("unknown status")
)

// MissingPaymentRecord is returned when an order carries no payment record.
func MissingPaymentRecord(orderID string) *apperrors.AppError {
	return apperrors.New("MISSING_PAYMENT",
		fmt.Sprintf("missing payment ID on order %s", orderID),
		http.StatusConflict, ErrMissingPaymentRecord)
}

// MissingPaymentID is returned when a refund is requested for an order that
// was never sent to the provider.
func MissingPaymentID(orderID string) *apperrors.AppError {
	return apperrors.New("MISSING_PAYMENT",
		fmt.Sprintf("missing Zaver payment ID for order %s", orderID),
		http.StatusConflict, ErrMissingPaymentID)
}

// PaymentIDMismatch is returned when an event names a different payment than
// the one stored on the order.
func PaymentIDMismatch(want, got string) *apperrors.AppError {
	return apperrors.New("ID_MISMATCH",
		fmt.Sprintf("mismatching payment ID: expected %q, got %q", want, got),
		http.StatusConflict, ErrPaymentIDMismatch)
}

// RefundIDMismatch is returned when a refund event names a refund that is not
// recorded on the order.
func RefundIDMismatch(refundID string) *apperrors.AppError {
	return apperrors.New("ID_MISMATCH",
		fmt.Sprintf("mismatching refund ID %q", refundID),
		http.StatusConflict, ErrRefundIDMismatch)
}

// RefundNotFound is returned when no refund on the order matches the amount.
func RefundNotFound(amount float64) *apperrors.AppError {
	return apperrors.New("NOT_FOUND",
		fmt.Sprintf("no refund found with amount %.2f", amount),
		http.StatusNotFound, fmt.Errorf("%w: %w", ErrRefundNotFound, apperrors.ErrNotFound))
}

// UnknownStatus describes a provider status with no defined transition. It is
// logged, never returned to callers.
func UnknownStatus(kind, status string) error {
	return fmt.Errorf("%w: %s status %q", ErrUnknownStatus, kind, status)
}

// ProviderUnavailable wraps a failed call to the payment provider.
func ProviderUnavailable(op string, err error) *apperrors.AppError {
	return apperrors.ServiceUnavailable(fmt.Sprintf("zaver %s failed: %v", op, err), err)
}

// Message returns the human readable part of err, suitable for order notes.
func Message(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
