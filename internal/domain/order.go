package domain

import (
	"strings"
	"time"
)

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusOnHold     = "on-hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
	OrderStatusRefunded   = "refunded"
)

// Metadata keys persisted alongside orders, order lines and refunds.
const (
	MetaPaymentRecord   = "_zaver_payment"
	MetaZaverLineItemID = "_zaver_line_item_id"
	MetaZaverRefundID   = "_zaver_refund_id"
)

// PaymentMethodPrefix identifies every payment method handled by this service.
const PaymentMethodPrefix = "zaver_checkout"

// Order is a storefront order as seen by the reconciliation core.
type Order struct {
	ID             string         `json:"id"`
	OrderKey       string         `json:"-"`
	Number         string         `json:"number"`
	Status         string         `json:"status"`
	Currency       string         `json:"currency"`
	Total          float64        `json:"total"`
	CustomerID     string         `json:"customer_id,omitempty"`
	CreatedVia     string         `json:"created_via,omitempty"`
	BillingCountry string         `json:"billing_country,omitempty"`
	PaymentMethod  string         `json:"payment_method"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	Lines          []Line         `json:"-"`
	Refunds        []*Refund      `json:"-"`
	Payment        *PaymentRecord `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PaymentRecord links an order to the provider payment created for it. A new
// payment attempt replaces the previous record.
type PaymentRecord struct {
	ID              string    `json:"id"`
	Token           string    `json:"token"`
	TokenValidUntil time.Time `json:"tokenValidUntil"`
}

// OrderNote is an entry in the order's append-only audit trail.
type OrderNote struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NeedsPayment reports whether the order is still awaiting payment. Once it
// returns false, payment reconciliation does nothing.
func (o *Order) NeedsPayment() bool {
	if o.PaidAt != nil {
		return false
	}
	switch o.Status {
	case OrderStatusPending, OrderStatusFailed:
		return o.Total > 0
	default:
		return false
	}
}

// UsesZaver reports whether the order was placed with one of the Zaver
// payment methods.
func (o *Order) UsesZaver() bool {
	return o.UsesPaymentMethod(PaymentMethodPrefix)
}

// UsesPaymentMethod reports whether the order's payment method starts with
// prefix.
func (o *Order) UsesPaymentMethod(prefix string) bool {
	return prefix != "" && strings.HasPrefix(o.PaymentMethod, prefix)
}

// PaymentID returns the stored provider payment id, or "".
func (o *Order) PaymentID() string {
	if o.Payment == nil {
		return ""
	}
	return o.Payment.ID
}

// Line returns the order line with the given id, or nil.
func (o *Order) Line(id string) Line {
	for _, l := range o.Lines {
		if l.Base().ID == id {
			return l
		}
	}
	return nil
}

// ProductLines returns the order's product lines in order.
func (o *Order) ProductLines() []*ProductLine {
	var out []*ProductLine
	for _, l := range o.Lines {
		if p, ok := l.(*ProductLine); ok {
			out = append(out, p)
		}
	}
	return out
}

// LastRefundWithAmount returns the most recently created refund whose amount
// equals amount exactly, or nil. Refund amounts are compared by magnitude.
func (o *Order) LastRefundWithAmount(amount float64) *Refund {
	var match *Refund
	for _, r := range o.Refunds {
		if r.AbsAmount() != amount {
			continue
		}
		if match == nil || !r.CreatedAt.Before(match.CreatedAt) {
			match = r
		}
	}
	return match
}

// RefundByZaverID returns the refund carrying the given provider refund id.
func (o *Order) RefundByZaverID(id string) *Refund {
	if id == "" {
		return nil
	}
	for _, r := range o.Refunds {
		if r.ZaverRefundID == id {
			return r
		}
	}
	return nil
}

// ValidOrderStatuses returns all valid order statuses.
func ValidOrderStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusOnHold,
		OrderStatusCompleted,
		OrderStatusCancelled,
		OrderStatusFailed,
		OrderStatusRefunded,
	}
}

// IsValidOrderStatus checks whether the given status is a valid order status.
func IsValidOrderStatus(status string) bool {
	for _, s := range ValidOrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
