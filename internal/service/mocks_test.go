package service

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/zaver"
)

// --- Mock Repository ---

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockRepository) SavePayment(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockRepository) MarkPaid(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, orderID, transactionID, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, orderID, status string) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockRepository) AddNote(ctx context.Context, orderID, content string) (*domain.OrderNote, error) {
	args := m.Called(ctx, orderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderNote), args.Error(1)
}

func (m *mockRepository) ListNotes(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]domain.OrderNote), args.Error(1)
}

func (m *mockRepository) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *mockRepository) SaveRefund(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

// expectNote expects exactly one note with the given content.
func (m *mockRepository) expectNote(orderID, content string) *mock.Call {
	return m.On("AddNote", mock.Anything, orderID, content).
		Return(&domain.OrderNote{ID: 1, OrderID: orderID, Content: content}, nil).Once()
}

// --- Mock Provider ---

type mockProvider struct {
	mock.Mock
}

var _ zaver.Provider = (*mockProvider)(nil)

func (m *mockProvider) CreatePayment(ctx context.Context, req *zaver.PaymentCreationRequest) (*zaver.PaymentCreationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.PaymentCreationResponse), args.Error(1)
}

func (m *mockProvider) GetPaymentStatus(ctx context.Context, paymentID string) (*zaver.PaymentStatusResponse, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.PaymentStatusResponse), args.Error(1)
}

func (m *mockProvider) CancelPayment(ctx context.Context, paymentID string) (*zaver.PaymentStatusResponse, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.PaymentStatusResponse), args.Error(1)
}

func (m *mockProvider) ReceivePaymentCallback(r *http.Request) (*zaver.PaymentStatusResponse, error) {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.PaymentStatusResponse), args.Error(1)
}

func (m *mockProvider) CreateRefund(ctx context.Context, req *zaver.RefundCreationRequest) (*zaver.RefundResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.RefundResponse), args.Error(1)
}

func (m *mockProvider) ApproveRefund(ctx context.Context, refundID string, req *zaver.RefundUpdateRequest) (*zaver.RefundResponse, error) {
	args := m.Called(ctx, refundID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.RefundResponse), args.Error(1)
}

func (m *mockProvider) ReceiveRefundCallback(r *http.Request) (*zaver.RefundResponse, error) {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zaver.RefundResponse), args.Error(1)
}

// --- Test Helpers ---

const (
	testBaseURL  = "https://shop.example"
	testOrderKey = "wc_order_abc"
	testPayment  = "pay_1"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestOrder returns a pending order with one product line (100 + 25 tax,
// quantity 4) and one shipping line (39.20 + 9.80 tax).
func newTestOrder() *domain.Order {
	return &domain.Order{
		ID:             "1001",
		OrderKey:       testOrderKey,
		Number:         "1001",
		Status:         domain.OrderStatusPending,
		Currency:       "SEK",
		Total:          174,
		CustomerID:     "7",
		CreatedVia:     "checkout",
		BillingCountry: "SE",
		PaymentMethod:  domain.PaymentMethodPrefix,
		Lines: []domain.Line{
			&domain.ProductLine{
				LineBase: domain.LineBase{ID: "11", Name: "Mug", Quantity: 4},
				Total:    100, TotalTax: 25, SKU: "MUG",
			},
			&domain.ShippingLine{
				LineBase: domain.LineBase{ID: "12", Name: "Post", Quantity: 1},
				Total:    39.2, TotalTax: 9.8, MethodID: "flat_rate:1",
			},
		},
		CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

// newPaidOrder returns newTestOrder with a payment record.
func newPaidOrder() *domain.Order {
	o := newTestOrder()
	o.Payment = &domain.PaymentRecord{
		ID:              testPayment,
		Token:           "tok_1",
		TokenValidUntil: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
	return o
}

func newTestPaymentService(repo *mockRepository, prov *mockProvider) *PaymentService {
	svc := NewPaymentService(repo, prov, NewURLs(testBaseURL), "", nil, nil, newTestLogger())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc
}

func newTestRefundService(repo *mockRepository, prov zaver.RefundAPI) *RefundService {
	svc := NewRefundService(repo, prov, NewURLs(testBaseURL), nil, nil, newTestLogger())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return svc
}
