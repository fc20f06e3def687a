package repository

import (
	"context"
	"time"

	"github.com/utafrali/zaver-checkout/internal/domain"
)

// OrderRepository defines the persistence operations the reconciliation core
// needs from the order store.
type OrderRepository interface {
	// Create inserts a new order together with its lines.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID loads an order with its lines, refunds and payment record.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// SavePayment stores the order's payment record and the provider line
	// item ids set on its lines.
	SavePayment(ctx context.Context, order *domain.Order) error

	// MarkPaid records the settlement of an order that has not been paid yet.
	// It reports false when the order was already marked paid.
	MarkPaid(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error)

	// UpdateStatus changes the order's lifecycle status.
	UpdateStatus(ctx context.Context, orderID, status string) error

	// AddNote appends an entry to the order's audit trail.
	AddNote(ctx context.Context, orderID, content string) (*domain.OrderNote, error)

	// ListNotes returns the order's notes, oldest first.
	ListNotes(ctx context.Context, orderID string) ([]domain.OrderNote, error)

	// CreateRefund inserts a refund and its lines.
	CreateRefund(ctx context.Context, refund *domain.Refund) error

	// SaveRefund stores the refund's provider refund id.
	SaveRefund(ctx context.Context, refund *domain.Refund) error
}
