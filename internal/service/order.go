package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/pricing"
	"github.com/utafrali/zaver-checkout/internal/repository"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/validator"
)

// orderKeyPrefix matches the storefront's own order key format.
const orderKeyPrefix = "wc_order_"

// OrderService ingests storefront orders and exposes them to the API.
type OrderService struct {
	repo   repository.OrderRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput holds an order as placed in the storefront.
type CreateOrderInput struct {
	ID             string              `json:"id" validate:"omitempty,max=64"`
	Number         string              `json:"number" validate:"omitempty,max=64"`
	Currency       string              `json:"currency" validate:"required,iso4217"`
	Total          float64             `json:"total" validate:"gte=0,cents"`
	CustomerID     string              `json:"customer_id" validate:"omitempty,max=64"`
	CreatedVia     string              `json:"created_via" validate:"omitempty,max=64"`
	BillingCountry string              `json:"billing_country" validate:"omitempty,iso3166_1_alpha2"`
	PaymentMethod  string              `json:"payment_method" validate:"required,max=64"`
	Lines          []domain.LineFields `json:"lines" validate:"required,min=1,dive"`
}

// Normalize upper-cases the currency and country codes.
func (in *CreateOrderInput) Normalize() {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.BillingCountry = strings.ToUpper(strings.TrimSpace(in.BillingCountry))
}

// CreateOrder stores a new pending order and assigns its order key.
func (s *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*domain.Order, error) {
	input.Normalize()
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	lines := make([]domain.Line, 0, len(input.Lines))
	var sum float64
	seen := make(map[string]struct{}, len(input.Lines))
	for _, f := range input.Lines {
		if _, dup := seen[f.ID]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate line id %q", f.ID))
		}
		seen[f.ID] = struct{}{}

		f.ZaverLineItemID = ""
		line, err := f.Line()
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		lines = append(lines, line)

		if f.Kind == domain.LineKindCoupon {
			sum -= f.Amount + f.Tax
		} else {
			sum += f.Amount + f.Tax
		}
	}
	if pricing.RoundFloat(sum) != pricing.RoundFloat(input.Total) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order total %.2f does not match line total %.2f", input.Total, sum))
	}

	now := s.now()
	o := &domain.Order{
		ID:             input.ID,
		OrderKey:       newOrderKey(),
		Number:         input.Number,
		Status:         domain.OrderStatusPending,
		Currency:       input.Currency,
		Total:          pricing.RoundFloat(input.Total),
		CustomerID:     input.CustomerID,
		CreatedVia:     input.CreatedVia,
		BillingCountry: input.BillingCountry,
		PaymentMethod:  input.PaymentMethod,
		Lines:          lines,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Number == "" {
		o.Number = o.ID
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", o.ID),
		slog.String("payment_method", o.PaymentMethod),
		slog.Float64("total", o.Total),
	)
	return o, nil
}

// GetOrder returns an order by id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrderWithKey returns an order after checking the shopper's order key.
func (s *OrderService) GetOrderWithKey(ctx context.Context, id, key string) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := VerifyOrderKey(o, key); err != nil {
		return nil, err
	}
	return o, nil
}

// ListNotes returns the order's audit trail.
func (s *OrderService) ListNotes(ctx context.Context, id string) ([]domain.OrderNote, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	notes, err := s.repo.ListNotes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	return notes, nil
}

func newOrderKey() string {
	return orderKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
}
