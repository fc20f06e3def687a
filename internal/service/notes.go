package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/repository"
)

// addNote appends a note to the order's audit trail. Failures are logged
// only; the state change the note describes has already been stored.
func addNote(ctx context.Context, repo repository.OrderRepository, logger *slog.Logger, orderID, content string) {
	if _, err := repo.AddNote(ctx, orderID, content); err != nil {
		logger.ErrorContext(ctx, "failed to add order note",
			slog.String("order_id", orderID),
			slog.String("note", content),
			slog.String("error", err.Error()),
		)
	}
}

// markFailed sets o to failed and records note.
func markFailed(ctx context.Context, repo repository.OrderRepository, logger *slog.Logger, o *domain.Order, note string) {
	if err := repo.UpdateStatus(ctx, o.ID, domain.OrderStatusFailed); err != nil {
		logger.ErrorContext(ctx, "failed to mark order failed",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	} else {
		o.Status = domain.OrderStatusFailed
	}
	addNote(ctx, repo, logger, o.ID, note)
}

// formatAmount renders an amount for order notes, e.g. "50.00 SEK".
func formatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
