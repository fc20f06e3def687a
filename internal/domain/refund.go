package domain

import (
	"math"
	"time"
)

// Refund status constants reported by the provider.
const (
	RefundStatusPendingMerchantApproval = "PENDING_MERCHANT_APPROVAL"
	RefundStatusPendingExecution        = "PENDING_EXECUTION"
	RefundStatusExecuted                = "EXECUTED"
	RefundStatusCancelled               = "CANCELLED"
)

// Payment status constants reported by the provider.
const (
	PaymentStatusCreated   = "CREATED"
	PaymentStatusSettled   = "SETTLED"
	PaymentStatusCancelled = "CANCELLED"
)

// Refund is a refund recorded against an order. Amounts follow the store's
// convention and may be negative. Each line's ID is the id of the order line
// it refunds.
type Refund struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Amount        float64   `json:"amount"`
	TotalTax      float64   `json:"total_tax"`
	Reason        string    `json:"reason,omitempty"`
	Lines         []Line    `json:"-"`
	ZaverRefundID string    `json:"zaver_refund_id,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AbsAmount returns |Amount|.
func (r *Refund) AbsAmount() float64 {
	return math.Abs(r.Amount)
}

// ValidRefundStatuses returns all provider refund statuses.
func ValidRefundStatuses() []string {
	return []string{
		RefundStatusPendingMerchantApproval,
		RefundStatusPendingExecution,
		RefundStatusExecuted,
		RefundStatusCancelled,
	}
}

// IsValidRefundStatus checks whether the given status is a known refund status.
func IsValidRefundStatus(status string) bool {
	for _, s := range ValidRefundStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
