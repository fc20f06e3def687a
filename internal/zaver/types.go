package zaver

import "time"

// MerchantMetadata keys round-tripped through the provider.
const (
	MetaOriginPlatform = "originPlatform"
	MetaOriginWebsite  = "originWebsite"
	MetaOriginPage     = "originPage"
	MetaCustomerID     = "customerId"
	MetaOrderID        = "orderId"
	MetaOrderItemID    = "orderItemId"
)

// MerchantURLs are the storefront URLs the provider redirects to or calls.
type MerchantURLs struct {
	SuccessURL  string `json:"successUrl,omitempty"`
	CancelURL   string `json:"cancelUrl,omitempty"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// LineItem is a payment line as sent to and returned by the provider.
type LineItem struct {
	ID                string            `json:"id,omitempty"`
	Name              string            `json:"name"`
	Quantity          int               `json:"quantity"`
	UnitPrice         float64           `json:"unitPrice"`
	TotalAmount       float64           `json:"totalAmount"`
	TaxRatePercent    float64           `json:"taxRatePercent"`
	TaxAmount         float64           `json:"taxAmount"`
	ItemType          string            `json:"itemType"`
	MerchantReference string            `json:"merchantReference,omitempty"`
	MerchantMetadata  map[string]string `json:"merchantMetadata,omitempty"`
}

// PaymentCreationRequest creates a hosted checkout payment.
type PaymentCreationRequest struct {
	MerchantPaymentReference string            `json:"merchantPaymentReference"`
	Amount                   float64           `json:"amount"`
	Currency                 string            `json:"currency"`
	Market                   string            `json:"market,omitempty"`
	MerchantMetadata         map[string]string `json:"merchantMetadata,omitempty"`
	Title                    string            `json:"title"`
	Description              string            `json:"description,omitempty"`
	LineItems                []LineItem        `json:"lineItems,omitempty"`
	MerchantURLs             *MerchantURLs     `json:"merchantUrls,omitempty"`
}

// PaymentCreationResponse is returned when a payment has been created.
type PaymentCreationResponse struct {
	PaymentID     string     `json:"paymentId"`
	Token         string     `json:"token"`
	ValidUntil    time.Time  `json:"validUntil"`
	PaymentStatus string     `json:"paymentStatus"`
	PaymentLink   string     `json:"paymentLink,omitempty"`
	LineItems     []LineItem `json:"lineItems,omitempty"`
}

// PaymentStatusResponse describes the current state of a payment. Callbacks
// deliver the same shape.
type PaymentStatusResponse struct {
	PaymentID                string            `json:"paymentId"`
	PaymentStatus            string            `json:"paymentStatus"`
	Amount                   float64           `json:"amount"`
	CapturedAmount           float64           `json:"capturedAmount"`
	RefundedAmount           float64           `json:"refundedAmount"`
	Currency                 string            `json:"currency"`
	MerchantPaymentReference string            `json:"merchantPaymentReference,omitempty"`
	MerchantMetadata         map[string]string `json:"merchantMetadata,omitempty"`
	ValidUntil               *time.Time        `json:"validUntil,omitempty"`
	PaymentMethod            string            `json:"paymentMethod,omitempty"`
}

// PaymentUpdateRequest changes the status of a payment.
type PaymentUpdateRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

// MerchantRepresentative identifies a staff member acting on a refund.
type MerchantRepresentative struct {
	Username string `json:"username,omitempty"`
}

// RefundLineItem refunds (part of) a previously paid line item.
type RefundLineItem struct {
	LineItemID           string  `json:"lineItemId"`
	RefundTotalAmount    float64 `json:"refundTotalAmount"`
	RefundTaxAmount      float64 `json:"refundTaxAmount"`
	RefundTaxRatePercent float64 `json:"refundTaxRatePercent"`
	RefundQuantity       int     `json:"refundQuantity"`
	RefundUnitPrice      float64 `json:"refundUnitPrice"`
}

// RefundCreationRequest requests a refund of a settled payment.
type RefundCreationRequest struct {
	PaymentID                  string                  `json:"paymentId"`
	InvoiceReference           string                  `json:"invoiceReference"`
	RefundAmount               float64                 `json:"refundAmount"`
	RefundTaxAmount            *float64                `json:"refundTaxAmount,omitempty"`
	LineItems                  []RefundLineItem        `json:"lineItems,omitempty"`
	Description                string                  `json:"description,omitempty"`
	InitializingRepresentative *MerchantRepresentative `json:"initializingRepresentative,omitempty"`
	MerchantMetadata           map[string]string       `json:"merchantMetadata,omitempty"`
	MerchantURLs               *MerchantURLs           `json:"merchantUrls,omitempty"`
}

// RefundUpdateRequest approves or cancels a pending refund.
type RefundUpdateRequest struct {
	ActingRepresentative MerchantRepresentative `json:"actingRepresentative"`
}

// RefundResponse describes a refund. Callbacks deliver the same shape.
type RefundResponse struct {
	RefundID                   string                  `json:"refundId"`
	PaymentID                  string                  `json:"paymentId"`
	Status                     string                  `json:"status"`
	RefundAmount               float64                 `json:"refundAmount"`
	Currency                   string                  `json:"currency"`
	Description                string                  `json:"description,omitempty"`
	InitializingRepresentative *MerchantRepresentative `json:"initializingRepresentative,omitempty"`
	ApprovingRepresentative    *MerchantRepresentative `json:"approvingRepresentative,omitempty"`
	MerchantMetadata           map[string]string       `json:"merchantMetadata,omitempty"`
}

// InitializedBy returns the initializing representative's username, or "".
func (r *RefundResponse) InitializedBy() string {
	if r.InitializingRepresentative == nil {
		return ""
	}
	return r.InitializingRepresentative.Username
}

// ApprovedBy returns the approving representative's username, or "".
func (r *RefundResponse) ApprovedBy() string {
	if r.ApprovingRepresentative == nil {
		return ""
	}
	return r.ApprovingRepresentative.Username
}
