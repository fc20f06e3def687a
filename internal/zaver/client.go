package zaver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/zaver-checkout/internal/domain"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/httpclient"
	"github.com/utafrali/zaver-checkout/pkg/tracing"
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the Zaver API. It implements Provider.
type Client struct {
	http          HTTPDoer
	baseURL       string
	apiKey        string
	callbackToken string
	logger        *slog.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a Client using doer for transport.
func NewClient(cfg Config, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		http:          doer,
		baseURL:       strings.TrimRight(cfg.URL(), "/"),
		apiKey:        cfg.APIKey,
		callbackToken: cfg.CallbackToken,
		logger:        logger,
	}
}

// CreatePayment creates a hosted checkout payment.
func (c *Client) CreatePayment(ctx context.Context, req *PaymentCreationRequest) (*PaymentCreationResponse, error) {
	var resp PaymentCreationResponse
	if err := c.do(ctx, "create payment", http.MethodPost, "/payments/checkout/v1/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentStatus fetches the current status of a payment.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatusResponse, error) {
	var resp PaymentStatusResponse
	if err := c.do(ctx, "get payment status", http.MethodGet, "/payments/checkout/v1/"+url.PathEscape(paymentID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelPayment cancels a payment that has not been settled.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*PaymentStatusResponse, error) {
	var resp PaymentStatusResponse
	body := &PaymentUpdateRequest{PaymentStatus: domain.PaymentStatusCancelled}
	if err := c.do(ctx, "cancel payment", http.MethodPatch, "/payments/checkout/v1/"+url.PathEscape(paymentID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateRefund requests a refund.
func (c *Client) CreateRefund(ctx context.Context, req *RefundCreationRequest) (*RefundResponse, error) {
	var resp RefundResponse
	if err := c.do(ctx, "create refund", http.MethodPost, "/refund/v1/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApproveRefund approves a pending refund on behalf of a representative.
func (c *Client) ApproveRefund(ctx context.Context, refundID string, req *RefundUpdateRequest) (*RefundResponse, error) {
	var resp RefundResponse
	if err := c.do(ctx, "approve refund", http.MethodPost, "/refund/v1/"+url.PathEscape(refundID)+"/approve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReceivePaymentCallback authenticates and decodes a payment callback.
func (c *Client) ReceivePaymentCallback(r *http.Request) (*PaymentStatusResponse, error) {
	return DecodePaymentCallback(r, c.callbackToken)
}

// ReceiveRefundCallback authenticates and decodes a refund callback.
func (c *Client) ReceiveRefundCallback(r *http.Request) (*RefundResponse, error) {
	return DecodeRefundCallback(r, c.callbackToken)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := tracing.Start(ctx, "zaver."+strings.ReplaceAll(op, " ", "_"),
		attribute.String("http.request.method", method),
		attribute.String("zaver.path", path),
	)
	defer func() { tracing.End(span, err) }()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "zaver request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return domain.ProviderUnavailable(op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		perr := httpclient.ParseResponseError(resp, "zaver")
		if apperrors.HTTPStatus(perr) >= http.StatusInternalServerError {
			return domain.ProviderUnavailable(op, perr)
		}
		return perr
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return domain.ProviderUnavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
