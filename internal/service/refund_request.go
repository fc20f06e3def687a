package service

import (
	"context"
	"fmt"
	"math"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/pricing"
	"github.com/utafrali/zaver-checkout/internal/zaver"
)

// BuildRefundRequest assembles the refund request for the most recent refund
// on o whose amount equals |amount|. rep is the initializing
// representative's username and may be empty.
func (s *RefundService) BuildRefundRequest(_ context.Context, o *domain.Order, amount float64, rep string) (*zaver.RefundCreationRequest, *domain.Refund, error) {
	amount = pricing.RoundFloat(math.Abs(amount))

	paymentID := o.PaymentID()
	if paymentID == "" {
		return nil, nil, domain.MissingPaymentID(o.ID)
	}

	refund := o.LastRefundWithAmount(amount)
	if refund == nil {
		return nil, nil, domain.RefundNotFound(amount)
	}

	req := &zaver.RefundCreationRequest{
		PaymentID:        paymentID,
		InvoiceReference: o.Number,
		RefundAmount:     pricing.RoundFloat(refund.AbsAmount()),
		Description:      refund.Reason,
		MerchantMetadata: merchantMetadata(s.urls, o),
	}
	if callback := s.urls.RefundCallback(o); callback != "" {
		req.MerchantURLs = &zaver.MerchantURLs{CallbackURL: callback}
	}
	if rep != "" {
		req.InitializingRepresentative = &zaver.MerchantRepresentative{Username: rep}
	}

	for _, line := range refund.Lines {
		lineItemID := refundLineItemID(o, line)
		if lineItemID == "" {
			continue
		}
		amounts, err := pricing.NormalizeAbs(line)
		if err != nil {
			return nil, nil, fmt.Errorf("build refund line items for order %s: %w", o.ID, err)
		}
		req.LineItems = append(req.LineItems, zaver.RefundLineItem{
			LineItemID:           lineItemID,
			RefundTotalAmount:    amounts.TotalAmount,
			RefundTaxAmount:      amounts.TaxAmount,
			RefundTaxRatePercent: amounts.TaxRatePercent,
			RefundQuantity:       amounts.Quantity,
			RefundUnitPrice:      amounts.UnitPrice,
		})
	}

	if len(req.LineItems) == 0 {
		tax := pricing.RoundFloat(math.Abs(refund.TotalTax))
		req.RefundTaxAmount = &tax
	}

	return req, refund, nil
}

// refundLineItemID returns the provider line item a refund line refunds: its
// own id when set, else the id stored on the referenced order line.
func refundLineItemID(o *domain.Order, line domain.Line) string {
	if id := line.Base().ZaverLineItemID; id != "" {
		return id
	}
	if ol := o.Line(line.Base().ID); ol != nil {
		return ol.Base().ZaverLineItemID
	}
	return ""
}
