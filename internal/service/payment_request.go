package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/pricing"
	"github.com/utafrali/zaver-checkout/internal/zaver"
)

// OriginPlatform is reported to the provider as the origin of every request.
const OriginPlatform = "woocommerce"

// PaymentRequestBuilder assembles payment creation requests from orders.
type PaymentRequestBuilder struct {
	urls  URLs
	hooks *Hooks
}

// NewPaymentRequestBuilder creates a builder. hooks may be nil.
func NewPaymentRequestBuilder(urls URLs, hooks *Hooks) *PaymentRequestBuilder {
	return &PaymentRequestBuilder{urls: urls, hooks: hooks}
}

// Build converts o into a payment creation request. BeforePaymentRequest
// observers run on the finished request before it is returned.
func (b *PaymentRequestBuilder) Build(ctx context.Context, o *domain.Order) (*zaver.PaymentCreationRequest, error) {
	req := &zaver.PaymentCreationRequest{
		MerchantPaymentReference: o.Number,
		Amount:                   pricing.RoundFloat(o.Total),
		Currency:                 o.Currency,
		Market:                   o.BillingCountry,
		MerchantMetadata:         merchantMetadata(b.urls, o),
		Title:                    paymentTitle(o),
		Description:              paymentDescription(o),
		MerchantURLs: &zaver.MerchantURLs{
			SuccessURL:  b.urls.OrderReceived(o),
			CallbackURL: b.urls.PaymentCallback(o),
		},
	}

	for _, line := range o.Lines {
		item, err := paymentLineItem(line)
		if err != nil {
			return nil, fmt.Errorf("build line items for order %s: %w", o.ID, err)
		}
		req.LineItems = append(req.LineItems, *item)
	}

	b.hooks.runBeforePaymentRequest(ctx, req, o)
	return req, nil
}

func paymentLineItem(line domain.Line) (*zaver.LineItem, error) {
	amounts, err := pricing.Normalize(line)
	if err != nil {
		return nil, err
	}
	b := line.Base()
	return &zaver.LineItem{
		Name:              b.Name,
		Quantity:          amounts.Quantity,
		UnitPrice:         amounts.UnitPrice,
		TotalAmount:       amounts.TotalAmount,
		TaxRatePercent:    amounts.TaxRatePercent,
		TaxAmount:         amounts.TaxAmount,
		ItemType:          pricing.ItemType(line),
		MerchantReference: pricing.MerchantReference(line),
		MerchantMetadata:  map[string]string{zaver.MetaOrderItemID: b.ID},
	}, nil
}

// merchantMetadata returns the metadata attached to payment and refund
// requests. Empty values are left out.
func merchantMetadata(urls URLs, o *domain.Order) map[string]string {
	md := map[string]string{zaver.MetaOriginPlatform: OriginPlatform}
	set := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	set(zaver.MetaOriginWebsite, urls.Home())
	set(zaver.MetaOriginPage, o.CreatedVia)
	set(zaver.MetaCustomerID, o.CustomerID)
	set(zaver.MetaOrderID, o.ID)
	return md
}

func paymentTitle(o *domain.Order) string {
	if products := o.ProductLines(); len(products) == 1 {
		return products[0].Name
	}
	return "Order " + o.Number
}

func paymentDescription(o *domain.Order) string {
	products := o.ProductLines()
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%d x %s", p.Quantity, p.SKU))
	}
	return strings.Join(parts, "\n")
}
