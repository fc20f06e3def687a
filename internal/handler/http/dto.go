package http

import "github.com/utafrali/zaver-checkout/internal/domain"

// OrderResponse is the JSON representation of an order.
type OrderResponse struct {
	*domain.Order
	// OrderKey is only returned when the order is created.
	OrderKey     string              `json:"order_key,omitempty"`
	PaymentID    string              `json:"payment_id,omitempty"`
	NeedsPayment bool                `json:"needs_payment"`
	Lines        []domain.LineFields `json:"lines"`
	Refunds      []RefundResponse    `json:"refunds,omitempty"`
}

// RefundResponse is the JSON representation of a refund.
type RefundResponse struct {
	*domain.Refund
	Lines []domain.LineFields `json:"lines,omitempty"`
}

func newOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		Order:        o,
		PaymentID:    o.PaymentID(),
		NeedsPayment: o.NeedsPayment(),
		Lines:        flattenLines(o.Lines),
	}
	for _, r := range o.Refunds {
		resp.Refunds = append(resp.Refunds, *newRefundResponse(r))
	}
	return resp
}

func newRefundResponse(r *domain.Refund) *RefundResponse {
	return &RefundResponse{Refund: r, Lines: flattenLines(r.Lines)}
}

func flattenLines(lines []domain.Line) []domain.LineFields {
	out := make([]domain.LineFields, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.Flatten(l))
	}
	return out
}
