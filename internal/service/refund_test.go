package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/middleware"
)

var refundBase = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

// newRefundOrder returns a paid order with refunds of 50, 75 and 50, created
// in that order.
func newRefundOrder() *domain.Order {
	o := newPaidOrder()
	o.Status = domain.OrderStatusProcessing
	o.PaidAt = &refundBase
	o.TransactionID = testPayment
	o.Lines[0].Base().ZaverLineItemID = "zl_11"
	o.Refunds = []*domain.Refund{
		{ID: "r1", OrderID: "1001", Amount: 50, TotalTax: -10, ZaverRefundID: "zr_1", CreatedAt: refundBase},
		{ID: "r2", OrderID: "1001", Amount: 75, TotalTax: -15, ZaverRefundID: "zr_2", CreatedAt: refundBase.Add(time.Hour)},
		{ID: "r3", OrderID: "1001", Amount: 50, TotalTax: -10, Reason: "Damaged", CreatedAt: refundBase.Add(2 * time.Hour)},
	}
	return o
}

func staffContext() context.Context {
	return middleware.WithClaims(context.Background(), &middleware.Claims{
		UserID: "u-1",
		Email:  "staff@shop.example",
		Role:   "admin",
	})
}

// ============================================================================
// BuildRefundRequest Tests
// ============================================================================

func TestBuildRefundRequest_MatchesLastRefundWithAmount(t *testing.T) {
	svc := newTestRefundService(new(mockRepository), new(mockProvider))
	o := newRefundOrder()

	tests := []struct {
		amount float64
		want   string
	}{
		{50, "r3"},
		{-50, "r3"},
		{75, "r2"},
		{75.001, "r2"},
	}
	for _, tc := range tests {
		_, refund, err := svc.BuildRefundRequest(context.Background(), o, tc.amount, "")
		require.NoError(t, err)
		assert.Equal(t, tc.want, refund.ID, "amount %v", tc.amount)
	}

	_, _, err := svc.BuildRefundRequest(context.Background(), o, 999, "")
	assert.ErrorIs(t, err, domain.ErrRefundNotFound)
}

func TestBuildRefundRequest_WithoutLines(t *testing.T) {
	svc := newTestRefundService(new(mockRepository), new(mockProvider))

	req, _, err := svc.BuildRefundRequest(context.Background(), newRefundOrder(), 50, "staff@shop.example")
	require.NoError(t, err)

	tax := 10.0
	assert.Equal(t, &zaver.RefundCreationRequest{
		PaymentID:        testPayment,
		InvoiceReference: "1001",
		RefundAmount:     50,
		RefundTaxAmount:  &tax,
		Description:      "Damaged",
		InitializingRepresentative: &zaver.MerchantRepresentative{
			Username: "staff@shop.example",
		},
		MerchantMetadata: map[string]string{
			zaver.MetaOriginPlatform: "woocommerce",
			zaver.MetaOriginWebsite:  testBaseURL,
			zaver.MetaOriginPage:     "checkout",
			zaver.MetaCustomerID:     "7",
			zaver.MetaOrderID:        "1001",
		},
		MerchantURLs: &zaver.MerchantURLs{
			CallbackURL: testBaseURL + "/wc-api/zaver_refund_callback?key=" + testOrderKey,
		},
	}, req)
}

func TestBuildRefundRequest_LineItems(t *testing.T) {
	svc := newTestRefundService(new(mockRepository), new(mockProvider))
	o := newRefundOrder()
	o.Refunds[2].Lines = []domain.Line{
		&domain.ProductLine{LineBase: domain.LineBase{ID: "11", Quantity: -1}, Total: -25, TotalTax: -6.25, SKU: "MUG"},
		// No provider line item id on the shipping line: skipped.
		&domain.ShippingLine{LineBase: domain.LineBase{ID: "12", Quantity: -1}, Total: -18.75},
	}

	req, _, err := svc.BuildRefundRequest(context.Background(), o, 50, "")
	require.NoError(t, err)

	assert.Nil(t, req.RefundTaxAmount)
	assert.Nil(t, req.InitializingRepresentative)
	assert.Equal(t, []zaver.RefundLineItem{{
		LineItemID:           "zl_11",
		RefundTotalAmount:    31.25,
		RefundTaxAmount:      6.25,
		RefundTaxRatePercent: 25,
		RefundQuantity:       1,
		RefundUnitPrice:      31.25,
	}}, req.LineItems)
}

func TestBuildRefundRequest_RefundLineOwnID(t *testing.T) {
	svc := newTestRefundService(new(mockRepository), new(mockProvider))
	o := newRefundOrder()
	o.Refunds[2].Lines = []domain.Line{
		&domain.ShippingLine{LineBase: domain.LineBase{ID: "12", Quantity: -1, ZaverLineItemID: "zl_ship"}, Total: -20, TotalTax: -5},
	}

	req, _, err := svc.BuildRefundRequest(context.Background(), o, 50, "")
	require.NoError(t, err)
	require.Len(t, req.LineItems, 1)
	assert.Equal(t, "zl_ship", req.LineItems[0].LineItemID)
	assert.Equal(t, 25.0, req.LineItems[0].RefundTotalAmount)
}

func TestBuildRefundRequest_MissingPaymentID(t *testing.T) {
	svc := newTestRefundService(new(mockRepository), new(mockProvider))
	o := newRefundOrder()
	o.Payment = nil

	_, _, err := svc.BuildRefundRequest(context.Background(), o, 50, "")
	assert.ErrorIs(t, err, domain.ErrMissingPaymentID)
}

func TestBuildRefundRequest_InsecureStorefront(t *testing.T) {
	svc := NewRefundService(new(mockRepository), new(mockProvider), NewURLs("http://localhost:8012"), nil, nil, newTestLogger())

	req, _, err := svc.BuildRefundRequest(context.Background(), newRefundOrder(), 75, "")
	require.NoError(t, err)
	assert.Nil(t, req.MerchantURLs)
	assert.Empty(t, req.Description)
}

// ============================================================================
// ProcessRefund Tests
// ============================================================================

func TestProcessRefund_RequestsAndApproves(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)
	ctx := staffContext()
	o := newRefundOrder()

	repo.On("GetByID", mock.Anything, "1001").Return(o, nil)
	prov.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req *zaver.RefundCreationRequest) bool {
		return req.RefundAmount == 50 && req.InitializingRepresentative.Username == "staff@shop.example"
	})).Return(&zaver.RefundResponse{RefundID: "zr_3", PaymentID: testPayment, Status: domain.RefundStatusPendingMerchantApproval}, nil)
	prov.On("ApproveRefund", mock.Anything, "zr_3", &zaver.RefundUpdateRequest{
		ActingRepresentative: zaver.MerchantRepresentative{Username: "staff@shop.example"},
	}).Return(&zaver.RefundResponse{RefundID: "zr_3", Status: domain.RefundStatusPendingExecution}, nil)
	repo.On("SaveRefund", mock.Anything, mock.MatchedBy(func(r *domain.Refund) bool {
		return r.ID == "r3" && r.ZaverRefundID == "zr_3"
	})).Return(nil).Twice()
	repo.expectNote("1001", "Requested a refund of 50.00 SEK - refund ID: zr_3")

	refund, err := svc.ProcessRefund(ctx, "1001", 50)
	require.NoError(t, err)
	assert.Equal(t, "zr_3", refund.ZaverRefundID)
	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestProcessRefund_WithoutRepresentativeSkipsApproval(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
	prov.On("CreateRefund", mock.Anything, mock.Anything).Return(&zaver.RefundResponse{RefundID: "zr_3"}, nil)
	repo.On("SaveRefund", mock.Anything, mock.Anything).Return(nil)
	repo.expectNote("1001", "Requested a refund of 75.00 SEK - refund ID: zr_3")

	_, err := svc.ProcessRefund(context.Background(), "1001", 75)
	require.NoError(t, err)
	prov.AssertNotCalled(t, "ApproveRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRefund_NoteUsesProviderAmount(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
	prov.On("CreateRefund", mock.Anything, mock.Anything).
		Return(&zaver.RefundResponse{RefundID: "zr_3", RefundAmount: 74.5, Currency: "EUR"}, nil)
	repo.On("SaveRefund", mock.Anything, mock.Anything).Return(nil)
	repo.expectNote("1001", "Requested a refund of 74.50 EUR - refund ID: zr_3")

	_, err := svc.ProcessRefund(context.Background(), "1001", 75)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessRefund_ProviderFailureIsNoted(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
	prov.On("CreateRefund", mock.Anything, mock.Anything).
		Return(nil, domain.ProviderUnavailable("create refund", errors.New("timeout")))
	repo.On("SaveRefund", mock.Anything, mock.MatchedBy(func(r *domain.Refund) bool {
		return r.ID == "r3" && r.ZaverRefundID == ""
	})).Return(nil).Once()
	repo.expectNote("1001", "Failed to request a refund with reason: zaver create refund failed: timeout")

	refund, err := svc.ProcessRefund(staffContext(), "1001", 50)
	require.NoError(t, err)
	assert.Empty(t, refund.ZaverRefundID)
	repo.AssertExpectations(t)
	prov.AssertNotCalled(t, "ApproveRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRefund_ApprovalFailureIsNoted(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
	prov.On("CreateRefund", mock.Anything, mock.Anything).Return(&zaver.RefundResponse{RefundID: "zr_3"}, nil)
	prov.On("ApproveRefund", mock.Anything, "zr_3", mock.Anything).
		Return(nil, apperrors.Conflict("zaver: refund is not pending approval"))
	repo.On("SaveRefund", mock.Anything, mock.Anything).Return(nil).Twice()
	repo.expectNote("1001", "Requested a refund of 50.00 SEK - refund ID: zr_3")
	repo.expectNote("1001", "Failed to request a refund with reason: zaver: refund is not pending approval")

	refund, err := svc.ProcessRefund(staffContext(), "1001", 50)
	require.NoError(t, err)
	assert.Equal(t, "zr_3", refund.ZaverRefundID)
	repo.AssertExpectations(t)
}

func TestProcessRefund_BuildErrorsAreReturned(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)

	_, err := svc.ProcessRefund(context.Background(), "1001", 999)
	assert.ErrorIs(t, err, domain.ErrRefundNotFound)
	assert.Empty(t, prov.Calls)
	repo.AssertNotCalled(t, "SaveRefund", mock.Anything, mock.Anything)
}

func TestProcessRefund_BeforeRefundRequestHook(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	hooks := &Hooks{}
	svc := NewRefundService(repo, prov, NewURLs(testBaseURL), hooks, nil, newTestLogger())

	hooks.OnBeforeRefundRequest(func(_ context.Context, req *zaver.RefundCreationRequest, _ *domain.Refund, _ *domain.Order) {
		req.Description = "Customer return"
	})
	var after []string
	hooks.OnAfterRefundRequest(func(_ context.Context, _ *zaver.RefundCreationRequest, refund *domain.Refund, _ *domain.Order) {
		after = append(after, refund.ZaverRefundID)
	})

	repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
	prov.On("CreateRefund", mock.Anything, mock.MatchedBy(func(req *zaver.RefundCreationRequest) bool {
		return req.Description == "Customer return"
	})).Return(&zaver.RefundResponse{RefundID: "zr_3"}, nil)
	repo.On("SaveRefund", mock.Anything, mock.Anything).Return(nil)
	repo.expectNote("1001", "Requested a refund of 50.00 SEK - refund ID: zr_3")

	_, err := svc.ProcessRefund(context.Background(), "1001", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"zr_3"}, after)
	prov.AssertExpectations(t)
}

// ============================================================================
// CreateRefund Tests
// ============================================================================

func TestCreateRefund_Success(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestRefundService(repo, prov)
	ctx := context.Background()

	o := newPaidOrder()
	o.Status = domain.OrderStatusProcessing
	o.Lines[0].Base().ZaverLineItemID = "zl_11"

	repo.On("GetByID", ctx, "1001").Return(o, nil)
	repo.On("CreateRefund", ctx, mock.MatchedBy(func(r *domain.Refund) bool {
		return r.Amount == 31.25 && r.TotalTax == -6.25 && r.Reason == "Broken" && len(r.Lines) == 1
	})).Run(func(args mock.Arguments) {
		o.Refunds = append(o.Refunds, args.Get(1).(*domain.Refund))
	}).Return(nil)
	prov.On("CreateRefund", ctx, mock.MatchedBy(func(req *zaver.RefundCreationRequest) bool {
		return req.RefundAmount == 31.25 &&
			req.RefundTaxAmount == nil &&
			len(req.LineItems) == 1 &&
			req.LineItems[0].LineItemID == "zl_11" &&
			req.LineItems[0].RefundQuantity == 1 &&
			req.LineItems[0].RefundTotalAmount == 31.25
	})).Return(&zaver.RefundResponse{RefundID: "zr_9"}, nil)
	repo.On("SaveRefund", ctx, mock.Anything).Return(nil)
	repo.expectNote("1001", "Requested a refund of 31.25 SEK - refund ID: zr_9")

	refund, err := svc.CreateRefund(ctx, "1001", &CreateRefundInput{
		Amount: 31.25,
		Tax:    6.25,
		Reason: " Broken ",
		Lines:  []RefundLineInput{{LineID: "11", Quantity: 1, Amount: 25, Tax: 6.25}},
	})
	require.NoError(t, err)
	assert.Equal(t, "zr_9", refund.ZaverRefundID)
	assert.Equal(t, testNow, refund.CreatedAt)

	line, ok := refund.Lines[0].(*domain.ProductLine)
	require.True(t, ok)
	assert.Equal(t, -1, line.Quantity)
	assert.Equal(t, -25.0, line.Total)
	assert.Equal(t, "MUG", line.SKU)
	assert.Empty(t, line.ZaverLineItemID)

	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestCreateRefund_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		input    *CreateRefundInput
		mutate   func(o *domain.Order)
		sentinel error
	}{
		{"zero amount", &CreateRefundInput{Amount: 0}, nil, apperrors.ErrInvalidInput},
		{"three decimals", &CreateRefundInput{Amount: 10.005}, nil, apperrors.ErrInvalidInput},
		{"exceeds total", &CreateRefundInput{Amount: 174.01}, nil, apperrors.ErrInvalidInput},
		{"exceeds remaining", &CreateRefundInput{Amount: 100}, func(o *domain.Order) {
			o.Refunds = []*domain.Refund{{ID: "r1", Amount: 100}}
		}, apperrors.ErrInvalidInput},
		{"unknown line", &CreateRefundInput{Amount: 10, Lines: []RefundLineInput{{LineID: "99", Amount: 10}}}, nil, apperrors.ErrInvalidInput},
		{"too many items", &CreateRefundInput{Amount: 10, Lines: []RefundLineInput{{LineID: "11", Quantity: 5, Amount: 10}}}, nil, apperrors.ErrInvalidInput},
		{"no payment", &CreateRefundInput{Amount: 10}, func(o *domain.Order) { o.Payment = nil }, domain.ErrMissingPaymentID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			prov := new(mockProvider)
			svc := newTestRefundService(repo, prov)

			o := newPaidOrder()
			if tc.mutate != nil {
				tc.mutate(o)
			}
			repo.On("GetByID", mock.Anything, "1001").Return(o, nil).Maybe()

			_, err := svc.CreateRefund(context.Background(), "1001", tc.input)
			assert.ErrorIs(t, err, tc.sentinel)
			repo.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
			assert.Empty(t, prov.Calls)
		})
	}
}

// ============================================================================
// HandleRefundEvent Tests
// ============================================================================

func refundEvent(status string) *zaver.RefundResponse {
	return &zaver.RefundResponse{
		RefundID:         "zr_1",
		PaymentID:        testPayment,
		Status:           status,
		RefundAmount:     50,
		Currency:         "SEK",
		MerchantMetadata: map[string]string{zaver.MetaOrderID: "1001"},
	}
}

func TestHandleRefundEvent_Notes(t *testing.T) {
	staff := &zaver.MerchantRepresentative{Username: "staff@shop.example"}
	boss := &zaver.MerchantRepresentative{Username: "boss@shop.example"}

	tests := []struct {
		name   string
		mutate func(ev *zaver.RefundResponse)
		want   string
	}{
		{"initialized", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusPendingMerchantApproval
		}, "Refund of 50.00 SEK initialized. Refund ID: zr_1"},
		{"initialized by with description", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusPendingMerchantApproval
			ev.InitializingRepresentative = staff
			ev.Description = "Damaged"
		}, `Refund of 50.00 SEK initialized by staff@shop.example with the description "Damaged". Refund ID: zr_1`},
		{"approved", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusPendingExecution
			ev.ApprovingRepresentative = boss
		}, "Refund of 50.00 SEK approved by boss@shop.example - Refund ID: zr_1"},
		{"approved anonymously", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusPendingExecution
		}, "Refund of 50.00 SEK approved - Refund ID: zr_1"},
		{"executed", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusExecuted
		}, "Refund of 50.00 SEK completed - Refund ID: zr_1"},
		{"cancelled", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusCancelled
			ev.ApprovingRepresentative = boss
		}, "Refund of 50.00 SEK cancelled by boss@shop.example - Refund ID: zr_1"},
		{"order currency fallback", func(ev *zaver.RefundResponse) {
			ev.Status = domain.RefundStatusExecuted
			ev.Currency = ""
			ev.RefundAmount = 12.5
		}, "Refund of 12.50 SEK completed - Refund ID: zr_1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			svc := newTestRefundService(repo, new(mockProvider))
			o := newRefundOrder()

			ev := refundEvent("")
			tc.mutate(ev)
			repo.expectNote("1001", tc.want)

			require.NoError(t, svc.HandleRefundEvent(context.Background(), o, testOrderKey, ev))
			repo.AssertExpectations(t)
			assert.Equal(t, domain.OrderStatusProcessing, o.Status)
			assert.Len(t, o.Refunds, 3)
		})
	}
}

func TestHandleRefundEvent_UnknownStatus(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestRefundService(repo, new(mockProvider))

	require.NoError(t, svc.HandleRefundEvent(context.Background(), newRefundOrder(), testOrderKey, refundEvent("ON_HOLD")))
	assert.Empty(t, repo.Calls)
}

func TestHandleRefundEvent_RefundEventHook(t *testing.T) {
	repo := new(mockRepository)
	hooks := &Hooks{}
	svc := NewRefundService(repo, new(mockProvider), NewURLs(testBaseURL), hooks, nil, newTestLogger())

	var seen []string
	hooks.OnRefundEvent(func(_ context.Context, o *domain.Order, ev *zaver.RefundResponse) {
		seen = append(seen, o.ID+":"+ev.Status)
	})
	repo.expectNote("1001", "Refund of 50.00 SEK completed - Refund ID: zr_1")

	require.NoError(t, svc.HandleRefundEvent(context.Background(), newRefundOrder(), testOrderKey, refundEvent(domain.RefundStatusExecuted)))
	assert.Equal(t, []string{"1001:" + domain.RefundStatusExecuted}, seen)
}

func TestHandleRefundEvent_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		mutate   func(ev *zaver.RefundResponse)
		sentinel error
	}{
		{"bad key", "forged", func(*zaver.RefundResponse) {}, apperrors.ErrUnauthorized},
		{"empty key", "", func(*zaver.RefundResponse) {}, apperrors.ErrUnauthorized},
		{"missing refund id", testOrderKey, func(ev *zaver.RefundResponse) { ev.RefundID = "" }, apperrors.ErrInvalidInput},
		{"payment mismatch", testOrderKey, func(ev *zaver.RefundResponse) { ev.PaymentID = "pay_2" }, domain.ErrPaymentIDMismatch},
		{"unknown refund", testOrderKey, func(ev *zaver.RefundResponse) { ev.RefundID = "zr_404" }, domain.ErrRefundIDMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			svc := newTestRefundService(repo, new(mockProvider))

			ev := refundEvent(domain.RefundStatusExecuted)
			tc.mutate(ev)

			err := svc.HandleRefundEvent(context.Background(), newRefundOrder(), tc.key, ev)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Empty(t, repo.Calls)
		})
	}
}

func TestHandleRefundCallback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestRefundService(repo, new(mockProvider))

		repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)
		repo.expectNote("1001", "Refund of 50.00 SEK completed - Refund ID: zr_1")

		require.NoError(t, svc.HandleRefundCallback(context.Background(), testOrderKey, refundEvent(domain.RefundStatusExecuted)))
		repo.AssertExpectations(t)
	})

	t.Run("mismatch fails order", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestRefundService(repo, new(mockProvider))
		o := newRefundOrder()

		ev := refundEvent(domain.RefundStatusExecuted)
		ev.RefundID = "zr_404"

		repo.On("GetByID", mock.Anything, "1001").Return(o, nil)
		repo.On("UpdateStatus", mock.Anything, "1001", domain.OrderStatusFailed).Return(nil)
		repo.expectNote("1001", `Failed with Zaver refund: mismatching refund ID "zr_404"`)

		err := svc.HandleRefundCallback(context.Background(), testOrderKey, ev)
		assert.ErrorIs(t, err, domain.ErrRefundIDMismatch)
		assert.Equal(t, domain.OrderStatusFailed, o.Status)
		repo.AssertExpectations(t)
	})

	t.Run("bad key leaves order", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestRefundService(repo, new(mockProvider))
		repo.On("GetByID", mock.Anything, "1001").Return(newRefundOrder(), nil)

		err := svc.HandleRefundCallback(context.Background(), "forged", refundEvent(domain.RefundStatusExecuted))
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing order id", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestRefundService(repo, new(mockProvider))

		ev := refundEvent(domain.RefundStatusExecuted)
		ev.MerchantMetadata = nil

		assert.ErrorIs(t, svc.HandleRefundCallback(context.Background(), testOrderKey, ev), apperrors.ErrInvalidInput)
		assert.Empty(t, repo.Calls)
	})
}
