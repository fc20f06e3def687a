// Package zaver is a client for the Zaver checkout and refund APIs.
package zaver

import (
	"context"
	"net/http"
)

// Base URLs of the Zaver API.
const (
	LiveBaseURL = "https://api.zaver.com"
	TestBaseURL = "https://api.test.zaver.se"
)

// CallbackTokenHeader carries the shared callback secret on provider callbacks.
const CallbackTokenHeader = "Callback-Token"

// PaymentAPI is the subset of the provider used for payments.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, req *PaymentCreationRequest) (*PaymentCreationResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatusResponse, error)
	CancelPayment(ctx context.Context, paymentID string) (*PaymentStatusResponse, error)
	// ReceivePaymentCallback authenticates and decodes a payment callback.
	ReceivePaymentCallback(r *http.Request) (*PaymentStatusResponse, error)
}

// RefundAPI is the subset of the provider used for refunds.
type RefundAPI interface {
	CreateRefund(ctx context.Context, req *RefundCreationRequest) (*RefundResponse, error)
	ApproveRefund(ctx context.Context, refundID string, req *RefundUpdateRequest) (*RefundResponse, error)
	// ReceiveRefundCallback authenticates and decodes a refund callback.
	ReceiveRefundCallback(r *http.Request) (*RefundResponse, error)
}

// Provider is the full provider surface.
type Provider interface {
	PaymentAPI
	RefundAPI
}

// Config configures the live client.
type Config struct {
	APIKey        string `env:"ZAVER_API_KEY"`
	CallbackToken string `env:"ZAVER_CALLBACK_TOKEN"`
	TestMode      bool   `env:"ZAVER_TEST_MODE" envDefault:"false"`
	// BaseURL overrides the URL selected by TestMode.
	BaseURL string `env:"ZAVER_BASE_URL"`
}

// URL returns the API base URL for the configured mode.
func (c Config) URL() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.TestMode:
		return TestBaseURL
	default:
		return LiveBaseURL
	}
}
