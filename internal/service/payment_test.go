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
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func statusEvent(status string) *zaver.PaymentStatusResponse {
	return &zaver.PaymentStatusResponse{
		PaymentID:        testPayment,
		PaymentStatus:    status,
		Amount:           174,
		Currency:         "SEK",
		MerchantMetadata: map[string]string{zaver.MetaOrderID: "1001"},
	}
}

// ============================================================================
// ProcessPayment Tests
// ============================================================================

func TestProcessPayment_Success(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)
	ctx := context.Background()

	o := newTestOrder()
	validUntil := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

	repo.On("GetByID", ctx, "1001").Return(o, nil)
	prov.On("CreatePayment", ctx, mock.MatchedBy(func(req *zaver.PaymentCreationRequest) bool {
		return req.MerchantPaymentReference == "1001" && len(req.LineItems) == 2
	})).Return(&zaver.PaymentCreationResponse{
		PaymentID:   testPayment,
		Token:       "tok_1",
		ValidUntil:  validUntil,
		PaymentLink: "https://pay.zaver.example/p/1",
		LineItems: []zaver.LineItem{
			{ID: "zl_11", MerchantMetadata: map[string]string{zaver.MetaOrderItemID: "11"}},
			{ID: "zl_12", MerchantMetadata: map[string]string{zaver.MetaOrderItemID: "12"}},
			{ID: "zl_99", MerchantMetadata: map[string]string{zaver.MetaOrderItemID: "99"}},
		},
	}, nil)
	repo.On("SavePayment", ctx, mock.MatchedBy(func(saved *domain.Order) bool {
		return saved.PaymentID() == testPayment &&
			saved.Payment.Token == "tok_1" &&
			saved.Line("11").Base().ZaverLineItemID == "zl_11" &&
			saved.Line("12").Base().ZaverLineItemID == "zl_12"
	})).Return(nil)

	session, err := svc.ProcessPayment(ctx, "1001")
	require.NoError(t, err)

	assert.Equal(t, &PaymentSession{
		OrderID:     "1001",
		PaymentID:   testPayment,
		Token:       "tok_1",
		ValidUntil:  validUntil,
		PaymentURL:  testBaseURL + "/checkout/order-pay/1001/?key=" + testOrderKey,
		PaymentLink: "https://pay.zaver.example/p/1",
	}, session)
	repo.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestProcessPayment_AfterPaymentCreatedHook(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	hooks := &Hooks{}
	svc := NewPaymentService(repo, prov, NewURLs(testBaseURL), "", hooks, nil, newTestLogger())
	ctx := context.Background()

	var seen string
	hooks.OnAfterPaymentCreated(func(_ context.Context, _ *zaver.PaymentCreationRequest, o *domain.Order, resp *zaver.PaymentCreationResponse) {
		seen = o.PaymentID() + "/" + resp.Token
	})

	repo.On("GetByID", ctx, "1001").Return(newTestOrder(), nil)
	prov.On("CreatePayment", ctx, mock.Anything).Return(&zaver.PaymentCreationResponse{PaymentID: testPayment, Token: "tok_1"}, nil)
	repo.On("SavePayment", ctx, mock.Anything).Return(nil)

	_, err := svc.ProcessPayment(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, testPayment+"/tok_1", seen)
}

func TestProcessPayment_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(o *domain.Order)
		sentinel error
	}{
		{"other payment method", func(o *domain.Order) { o.PaymentMethod = "stripe" }, apperrors.ErrInvalidInput},
		{"already paid", func(o *domain.Order) { o.Status = domain.OrderStatusProcessing }, apperrors.ErrConflict},
		{"zero total", func(o *domain.Order) { o.Total = 0 }, apperrors.ErrConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			prov := new(mockProvider)
			svc := newTestPaymentService(repo, prov)

			o := newTestOrder()
			tc.mutate(o)
			repo.On("GetByID", mock.Anything, "1001").Return(o, nil)

			_, err := svc.ProcessPayment(context.Background(), "1001")
			assert.ErrorIs(t, err, tc.sentinel)
			prov.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessPayment_ProviderError(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)
	ctx := context.Background()

	repo.On("GetByID", ctx, "1001").Return(newTestOrder(), nil)
	prov.On("CreatePayment", ctx, mock.Anything).
		Return(nil, domain.ProviderUnavailable("create payment", errors.New("timeout")))

	_, err := svc.ProcessPayment(ctx, "1001")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	repo.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything)
}

// ============================================================================
// HandlePaymentEvent Tests
// ============================================================================

func TestHandlePaymentEvent_Settled(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)
	ctx := context.Background()
	o := newPaidOrder()

	repo.On("MarkPaid", mock.Anything, "1001", testPayment, testNow).Return(true, nil).Once()
	repo.expectNote("1001", "Successful payment with Zaver - payment ID: pay_1")

	redirect, err := svc.HandlePaymentEvent(ctx, o, testOrderKey, statusEvent(domain.PaymentStatusSettled), false)
	require.NoError(t, err)
	assert.Empty(t, redirect)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	assert.Equal(t, testPayment, o.TransactionID)
	require.NotNil(t, o.PaidAt)

	// A second delivery finds the order paid and does nothing.
	redirect, err = svc.HandlePaymentEvent(ctx, o, testOrderKey, statusEvent(domain.PaymentStatusSettled), false)
	require.NoError(t, err)
	assert.Empty(t, redirect)

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "MarkPaid", 1)
	repo.AssertNumberOfCalls(t, "AddNote", 1)
}

func TestHandlePaymentEvent_SettledAlreadyMarked(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))
	o := newPaidOrder()

	repo.On("MarkPaid", mock.Anything, "1001", testPayment, testNow).Return(false, nil)

	_, err := svc.HandlePaymentEvent(context.Background(), o, testOrderKey, statusEvent(domain.PaymentStatusSettled), false)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "AddNote", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestHandlePaymentEvent_NoPaymentNeeded(t *testing.T) {
	for _, status := range []string{domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled} {
		t.Run(status, func(t *testing.T) {
			repo := new(mockRepository)
			prov := new(mockProvider)
			svc := newTestPaymentService(repo, prov)
			o := newPaidOrder()
			o.Status = status

			redirect, err := svc.HandlePaymentEvent(context.Background(), o, "wrong-key", nil, true)
			require.NoError(t, err)
			assert.Empty(t, redirect)
			assert.Empty(t, repo.Calls)
			assert.Empty(t, prov.Calls)
		})
	}
}

func TestHandlePaymentEvent_Unauthorized(t *testing.T) {
	for _, key := range []string{"", "wc_order_xyz"} {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)
		o := newPaidOrder()

		_, err := svc.HandlePaymentEvent(context.Background(), o, key, statusEvent(domain.PaymentStatusSettled), false)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Empty(t, repo.Calls)
		assert.Empty(t, prov.Calls)
		assert.Equal(t, domain.OrderStatusPending, o.Status)
	}
}

func TestHandlePaymentEvent_MissingPaymentRecord(t *testing.T) {
	svc := newTestPaymentService(new(mockRepository), new(mockProvider))

	_, err := svc.HandlePaymentEvent(context.Background(), newTestOrder(), testOrderKey, nil, false)
	assert.ErrorIs(t, err, domain.ErrMissingPaymentRecord)

	o := newTestOrder()
	o.Payment = &domain.PaymentRecord{}
	_, err = svc.HandlePaymentEvent(context.Background(), o, testOrderKey, nil, false)
	assert.ErrorIs(t, err, domain.ErrMissingPaymentRecord)
}

func TestHandlePaymentEvent_PaymentIDMismatch(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)
	o := newPaidOrder()

	ev := statusEvent(domain.PaymentStatusSettled)
	ev.PaymentID = "pay_other"

	_, err := svc.HandlePaymentEvent(context.Background(), o, testOrderKey, ev, false)
	assert.ErrorIs(t, err, domain.ErrPaymentIDMismatch)
	assert.Empty(t, repo.Calls)
	assert.Nil(t, o.PaidAt)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestHandlePaymentEvent_FetchesStatus(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)
	ctx := context.Background()

	prov.On("GetPaymentStatus", mock.Anything, testPayment).Return(statusEvent(domain.PaymentStatusCreated), nil)

	redirect, err := svc.HandlePaymentEvent(ctx, newPaidOrder(), testOrderKey, nil, false)
	require.NoError(t, err)
	assert.Empty(t, redirect)
	prov.AssertExpectations(t)
	assert.Empty(t, repo.Calls)
}

func TestHandlePaymentEvent_ProviderUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport", domain.ProviderUnavailable("get payment status", errors.New("dial tcp: refused"))},
		{"client error", apperrors.NotFound("zaver payment", testPayment)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prov := new(mockProvider)
			svc := newTestPaymentService(new(mockRepository), prov)
			prov.On("GetPaymentStatus", mock.Anything, testPayment).Return(nil, tc.err)

			_, err := svc.HandlePaymentEvent(context.Background(), newPaidOrder(), testOrderKey, nil, false)
			assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
		})
	}
}

func TestHandlePaymentEvent_Cancelled(t *testing.T) {
	t.Run("redirect", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestPaymentService(repo, new(mockProvider))
		o := newPaidOrder()

		redirect, err := svc.HandlePaymentEvent(context.Background(), o, testOrderKey, statusEvent(domain.PaymentStatusCancelled), true)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/cart/?cancel_order=true&order="+testOrderKey+"&order_id=1001", redirect)
		assert.Empty(t, repo.Calls)
		assert.Equal(t, domain.OrderStatusPending, o.Status)
	})

	t.Run("callback", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestPaymentService(repo, new(mockProvider))
		o := newPaidOrder()

		repo.On("UpdateStatus", mock.Anything, "1001", domain.OrderStatusCancelled).Return(nil).Once()
		repo.expectNote("1001", "Zaver payment was cancelled - cancelling order")

		redirect, err := svc.HandlePaymentEvent(context.Background(), o, testOrderKey, statusEvent(domain.PaymentStatusCancelled), false)
		require.NoError(t, err)
		assert.Empty(t, redirect)
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
		repo.AssertExpectations(t)
	})
}

func TestHandlePaymentEvent_Created(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))

	redirect, err := svc.HandlePaymentEvent(context.Background(), newPaidOrder(), testOrderKey, statusEvent(domain.PaymentStatusCreated), true)
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/checkout/order-pay/1001/?key="+testOrderKey, redirect)

	redirect, err = svc.HandlePaymentEvent(context.Background(), newPaidOrder(), testOrderKey, statusEvent(domain.PaymentStatusCreated), false)
	require.NoError(t, err)
	assert.Empty(t, redirect)
	assert.Empty(t, repo.Calls)
}

func TestHandlePaymentEvent_UnknownStatus(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))
	o := newPaidOrder()

	redirect, err := svc.HandlePaymentEvent(context.Background(), o, testOrderKey, statusEvent("EXPIRED"), true)
	require.NoError(t, err)
	assert.Empty(t, redirect)
	assert.Empty(t, repo.Calls)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestHandlePaymentEvent_PaymentEventHook(t *testing.T) {
	hooks := &Hooks{}
	svc := NewPaymentService(new(mockRepository), new(mockProvider), NewURLs(testBaseURL), "", hooks, nil, newTestLogger())

	var got []string
	hooks.OnPaymentEvent(func(_ context.Context, o *domain.Order, ev *zaver.PaymentStatusResponse, allowRedirect bool) {
		got = append(got, o.ID, ev.PaymentStatus)
		assert.True(t, allowRedirect)
	})

	_, err := svc.HandlePaymentEvent(context.Background(), newPaidOrder(), testOrderKey, statusEvent(domain.PaymentStatusCreated), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", domain.PaymentStatusCreated}, got)
}

// ============================================================================
// Entrypoint Tests
// ============================================================================

func TestHandlePaymentCallback_Settled(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))
	ctx := context.Background()

	repo.On("GetByID", ctx, "1001").Return(newPaidOrder(), nil)
	repo.On("MarkPaid", mock.Anything, "1001", testPayment, testNow).Return(true, nil)
	repo.expectNote("1001", "Successful payment with Zaver - payment ID: pay_1")

	require.NoError(t, svc.HandlePaymentCallback(ctx, testOrderKey, statusEvent(domain.PaymentStatusSettled)))
	repo.AssertExpectations(t)
}

func TestHandlePaymentCallback_MissingOrderID(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))

	ev := statusEvent(domain.PaymentStatusSettled)
	ev.MerchantMetadata = nil

	err := svc.HandlePaymentCallback(context.Background(), testOrderKey, ev)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, repo.Calls)

	assert.ErrorIs(t, svc.HandlePaymentCallback(context.Background(), testOrderKey, nil), apperrors.ErrInvalidInput)
}

func TestHandlePaymentCallback_UnknownOrder(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))

	repo.On("GetByID", mock.Anything, "1001").Return(nil, apperrors.NotFound("order", "1001"))

	err := svc.HandlePaymentCallback(context.Background(), testOrderKey, statusEvent(domain.PaymentStatusSettled))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHandlePaymentCallback_MismatchFailsOrder(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))
	o := newPaidOrder()

	ev := statusEvent(domain.PaymentStatusSettled)
	ev.PaymentID = "pay_2"

	repo.On("GetByID", mock.Anything, "1001").Return(o, nil)
	repo.On("UpdateStatus", mock.Anything, "1001", domain.OrderStatusFailed).Return(nil).Once()
	repo.expectNote("1001", `Failed with Zaver payment: mismatching payment ID: expected "pay_1", got "pay_2"`)

	err := svc.HandlePaymentCallback(context.Background(), testOrderKey, ev)
	assert.ErrorIs(t, err, domain.ErrPaymentIDMismatch)
	assert.Equal(t, domain.OrderStatusFailed, o.Status)
	assert.Nil(t, o.PaidAt)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePaymentCallback_BadKeyLeavesOrder(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestPaymentService(repo, new(mockProvider))

	repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)

	err := svc.HandlePaymentCallback(context.Background(), "forged", statusEvent(domain.PaymentStatusSettled))
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AddNote", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleOrderReceived(t *testing.T) {
	t.Run("created redirects to payment page", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)

		repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)
		prov.On("GetPaymentStatus", mock.Anything, testPayment).Return(statusEvent(domain.PaymentStatusCreated), nil)

		redirect, o, err := svc.HandleOrderReceived(context.Background(), "1001", testOrderKey)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/checkout/order-pay/1001/?key="+testOrderKey, redirect)
		assert.Equal(t, "1001", o.ID)
	})

	t.Run("settled shows the order", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)

		repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)
		prov.On("GetPaymentStatus", mock.Anything, testPayment).Return(statusEvent(domain.PaymentStatusSettled), nil)
		repo.On("MarkPaid", mock.Anything, "1001", testPayment, testNow).Return(true, nil)
		repo.expectNote("1001", "Successful payment with Zaver - payment ID: pay_1")

		redirect, o, err := svc.HandleOrderReceived(context.Background(), "1001", testOrderKey)
		require.NoError(t, err)
		assert.Empty(t, redirect)
		assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	})

	t.Run("other payment method is ignored", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)

		o := newPaidOrder()
		o.PaymentMethod = "bacs"
		repo.On("GetByID", mock.Anything, "1001").Return(o, nil)

		redirect, got, err := svc.HandleOrderReceived(context.Background(), "1001", "anything")
		require.NoError(t, err)
		assert.Empty(t, redirect)
		assert.Same(t, o, got)
		assert.Empty(t, prov.Calls)
	})

	t.Run("failure redirects to checkout", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)
		o := newPaidOrder()

		repo.On("GetByID", mock.Anything, "1001").Return(o, nil)
		prov.On("GetPaymentStatus", mock.Anything, testPayment).
			Return(nil, domain.ProviderUnavailable("get payment status", errors.New("timeout")))
		repo.On("UpdateStatus", mock.Anything, "1001", domain.OrderStatusFailed).Return(nil)
		repo.expectNote("1001", "Failed with Zaver payment: zaver get payment status failed: timeout")

		redirect, _, err := svc.HandleOrderReceived(context.Background(), "1001", testOrderKey)
		require.NoError(t, err)
		assert.Equal(t, testBaseURL+"/checkout/?zco_notice=payment_error", redirect)
		assert.Equal(t, domain.OrderStatusFailed, o.Status)
		repo.AssertExpectations(t)
	})

	t.Run("bad key", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestPaymentService(repo, new(mockProvider))
		repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)

		_, _, err := svc.HandleOrderReceived(context.Background(), "1001", "forged")
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSyncOrder(t *testing.T) {
	repo := new(mockRepository)
	prov := new(mockProvider)
	svc := newTestPaymentService(repo, prov)

	repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)
	prov.On("GetPaymentStatus", mock.Anything, testPayment).Return(statusEvent(domain.PaymentStatusSettled), nil)
	repo.On("MarkPaid", mock.Anything, "1001", testPayment, testNow).Return(true, nil)
	repo.expectNote("1001", "Successful payment with Zaver - payment ID: pay_1")

	o, err := svc.SyncOrder(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
	repo.AssertExpectations(t)
}

func TestCancelPayment(t *testing.T) {
	t.Run("cancels pending payment", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)

		repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)
		prov.On("CancelPayment", mock.Anything, testPayment).Return(statusEvent(domain.PaymentStatusCancelled), nil)
		repo.expectNote("1001", "Cancelled Zaver payment")

		require.NoError(t, svc.CancelPayment(context.Background(), "1001"))
		repo.AssertExpectations(t)
		prov.AssertExpectations(t)
	})

	t.Run("provider error is noted", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvider)
		svc := newTestPaymentService(repo, prov)

		repo.On("GetByID", mock.Anything, "1001").Return(newPaidOrder(), nil)
		prov.On("CancelPayment", mock.Anything, testPayment).
			Return(nil, apperrors.Conflict("zaver: settled payments cannot be cancelled"))
		repo.expectNote("1001", "Failed to cancel Zaver payment: zaver: settled payments cannot be cancelled")

		err := svc.CancelPayment(context.Background(), "1001")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		repo.AssertExpectations(t)
	})

	t.Run("unknown order", func(t *testing.T) {
		repo := new(mockRepository)
		svc := newTestPaymentService(repo, new(mockProvider))
		repo.On("GetByID", mock.Anything, "404").Return(nil, apperrors.NotFound("order", "404"))

		require.NoError(t, svc.CancelPayment(context.Background(), "404"))
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		for name, o := range map[string]*domain.Order{
			"no payment":   newTestOrder(),
			"other method": func() *domain.Order { o := newPaidOrder(); o.PaymentMethod = "bacs"; return o }(),
			"already paid": func() *domain.Order { o := newPaidOrder(); o.PaidAt = &testNow; return o }(),
		} {
			repo := new(mockRepository)
			prov := new(mockProvider)
			svc := newTestPaymentService(repo, prov)
			repo.On("GetByID", mock.Anything, "1001").Return(o, nil)

			require.NoError(t, svc.CancelPayment(context.Background(), "1001"), name)
			assert.Empty(t, prov.Calls, name)
		}
	})
}
