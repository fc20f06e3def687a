package mock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

func createPayment(t *testing.T, p *Provider) *zaver.PaymentCreationResponse {
	t.Helper()
	resp, err := p.CreatePayment(context.Background(), &zaver.PaymentCreationRequest{
		MerchantPaymentReference: "1001",
		Amount:                   250,
		Currency:                 "SEK",
		MerchantMetadata:         map[string]string{zaver.MetaOrderID: "42"},
		LineItems: []zaver.LineItem{
			{Name: "Mug", Quantity: 1, MerchantMetadata: map[string]string{zaver.MetaOrderItemID: "11"}},
			{Name: "Post", Quantity: 1, MerchantMetadata: map[string]string{zaver.MetaOrderItemID: "12"}},
		},
	})
	require.NoError(t, err)
	return resp
}

func TestProvider_PaymentLifecycle(t *testing.T) {
	p := NewProvider("")
	ctx := context.Background()
	resp := createPayment(t, p)

	require.Len(t, resp.LineItems, 2)
	assert.NotEmpty(t, resp.LineItems[0].ID)
	assert.Equal(t, "11", resp.LineItems[0].MerchantMetadata[zaver.MetaOrderItemID])
	assert.NotEmpty(t, resp.Token)

	status, err := p.GetPaymentStatus(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "CREATED", status.PaymentStatus)
	assert.Equal(t, "42", status.MerchantMetadata[zaver.MetaOrderID])

	require.NoError(t, p.SetPaymentStatus(resp.PaymentID, "SETTLED"))
	status, err = p.GetPaymentStatus(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, status.CapturedAmount)

	_, err = p.CancelPayment(ctx, resp.PaymentID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = p.GetPaymentStatus(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProvider_CancelPayment(t *testing.T) {
	p := NewProvider("")
	resp := createPayment(t, p)

	status, err := p.CancelPayment(context.Background(), resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", status.PaymentStatus)
}

func TestProvider_RefundLifecycle(t *testing.T) {
	p := NewProvider("")
	ctx := context.Background()
	resp := createPayment(t, p)

	_, err := p.CreateRefund(ctx, &zaver.RefundCreationRequest{PaymentID: resp.PaymentID, RefundAmount: 50})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "unsettled payments cannot be refunded")

	require.NoError(t, p.SetPaymentStatus(resp.PaymentID, "SETTLED"))

	_, err = p.CreateRefund(ctx, &zaver.RefundCreationRequest{PaymentID: resp.PaymentID, RefundAmount: 999})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	refund, err := p.CreateRefund(ctx, &zaver.RefundCreationRequest{PaymentID: resp.PaymentID, RefundAmount: 50, Description: "broken"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING_MERCHANT_APPROVAL", refund.Status)
	assert.Equal(t, "SEK", refund.Currency)

	approved, err := p.ApproveRefund(ctx, refund.RefundID, &zaver.RefundUpdateRequest{
		ActingRepresentative: zaver.MerchantRepresentative{Username: "ops@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING_EXECUTION", approved.Status)
	assert.Equal(t, "ops@example.com", approved.ApprovedBy())

	_, err = p.ApproveRefund(ctx, refund.RefundID, &zaver.RefundUpdateRequest{})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	status, err := p.GetPaymentStatus(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, status.RefundedAmount)
}

func TestProvider_Callbacks(t *testing.T) {
	p := NewProvider("tok")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"paymentId":"p1","paymentStatus":"SETTLED"}`))
	req.Header.Set(zaver.CallbackTokenHeader, "tok")
	status, err := p.ReceivePaymentCallback(req)
	require.NoError(t, err)
	assert.Equal(t, "p1", status.PaymentID)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refundId":"r1"}`))
	_, err = p.ReceiveRefundCallback(req)
	assert.ErrorIs(t, err, zaver.ErrInvalidCallbackToken)
}
