package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/pkg/database"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Provider state lives in JSONB metadata columns under the _zaver_* keys.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const (
	insertOrderQuery = `
		INSERT INTO orders (id, order_key, number, status, currency, total, customer_id, created_via, billing_country, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	insertLineQuery = `
		INSERT INTO order_lines (order_id, id, position, kind, name, quantity, amount, tax, tax_rate_percent, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectOrderQuery = `
		SELECT id, order_key, number, status, currency, total, customer_id, created_via, billing_country,
		       payment_method, transaction_id, paid_at, metadata->'` + domain.MetaPaymentRecord + `', created_at, updated_at
		FROM orders
		WHERE id = $1`

	selectLinesQuery = `
		SELECT id, kind, name, quantity, amount, tax, tax_rate_percent, reference,
		       COALESCE(metadata->>'` + domain.MetaZaverLineItemID + `', '')
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position`

	selectRefundsQuery = `
		SELECT id, order_id, amount, total_tax, reason, created_by,
		       COALESCE(metadata->>'` + domain.MetaZaverRefundID + `', ''), created_at
		FROM refunds
		WHERE order_id = $1
		ORDER BY created_at, id`

	selectRefundLinesQuery = `
		SELECT rl.refund_id, rl.line_id, rl.kind, rl.name, rl.quantity, rl.amount, rl.tax, rl.tax_rate_percent, rl.reference
		FROM refund_lines rl
		JOIN refunds r ON r.id = rl.refund_id
		WHERE r.order_id = $1
		ORDER BY rl.refund_id, rl.position`

	savePaymentQuery = `
		UPDATE orders
		SET metadata = metadata || jsonb_build_object('` + domain.MetaPaymentRecord + `', $2::jsonb), updated_at = $3
		WHERE id = $1`

	saveLineItemIDQuery = `
		UPDATE order_lines
		SET metadata = metadata || jsonb_build_object('` + domain.MetaZaverLineItemID + `', $3::text)
		WHERE order_id = $1 AND id = $2`

	markPaidQuery = `
		UPDATE orders
		SET status = $2, transaction_id = $3, paid_at = $4, updated_at = $4
		WHERE id = $1 AND paid_at IS NULL`

	updateStatusQuery = `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1`

	insertNoteQuery = `
		INSERT INTO order_notes (order_id, content, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`

	selectNotesQuery = `
		SELECT id, order_id, content, created_at
		FROM order_notes
		WHERE order_id = $1
		ORDER BY id`

	insertRefundQuery = `
		INSERT INTO refunds (id, order_id, amount, total_tax, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertRefundLineQuery = `
		INSERT INTO refund_lines (refund_id, line_id, position, kind, name, quantity, amount, tax, tax_rate_percent, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	saveRefundQuery = `
		UPDATE refunds
		SET metadata = metadata || jsonb_build_object('` + domain.MetaZaverRefundID + `', $2::text)
		WHERE id = $1`
)

// Create inserts the order and its lines in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderQuery,
		o.ID,
		o.OrderKey,
		o.Number,
		o.Status,
		o.Currency,
		o.Total,
		o.CustomerID,
		o.CreatedVia,
		o.BillingCountry,
		o.PaymentMethod,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "id", o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, l := range o.Lines {
		f := domain.Flatten(l)
		if _, err = tx.Exec(ctx, insertLineQuery,
			o.ID, f.ID, i, string(f.Kind), f.Name, f.Quantity, f.Amount, f.Tax, f.TaxRatePercent, f.Reference,
		); err != nil {
			return fmt.Errorf("insert order line %s: %w", f.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// GetByID loads the order, its lines, its refunds and their lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrder", selectOrderQuery)
	defer func() { end(err) }()

	o = &domain.Order{}
	var (
		transactionID *string
		paymentRaw    []byte
	)
	err = r.db.QueryRow(ctx, selectOrderQuery, id).Scan(
		&o.ID,
		&o.OrderKey,
		&o.Number,
		&o.Status,
		&o.Currency,
		&o.Total,
		&o.CustomerID,
		&o.CreatedVia,
		&o.BillingCountry,
		&o.PaymentMethod,
		&transactionID,
		&o.PaidAt,
		&paymentRaw,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if transactionID != nil {
		o.TransactionID = *transactionID
	}
	if len(paymentRaw) > 0 && string(paymentRaw) != "null" {
		var rec domain.PaymentRecord
		if err = json.Unmarshal(paymentRaw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", domain.MetaPaymentRecord, err)
		}
		o.Payment = &rec
	}

	if o.Lines, err = r.lines(ctx, id); err != nil {
		return nil, err
	}
	if o.Refunds, err = r.refunds(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderID string) ([]domain.Line, error) {
	rows, err := r.db.Query(ctx, selectLinesQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.Line
	for rows.Next() {
		var (
			f    domain.LineFields
			kind string
		)
		if err := rows.Scan(&f.ID, &kind, &f.Name, &f.Quantity, &f.Amount, &f.Tax, &f.TaxRatePercent, &f.Reference, &f.ZaverLineItemID); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		f.Kind = domain.LineKind(kind)
		l, err := f.Line()
		if err != nil {
			return nil, fmt.Errorf("order line %s: %w", f.ID, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

func (r *OrderRepository) refunds(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	rows, err := r.db.Query(ctx, selectRefundsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}

	var (
		refunds []*domain.Refund
		byID    = make(map[string]*domain.Refund)
	)
	for rows.Next() {
		var ref domain.Refund
		if err := rows.Scan(&ref.ID, &ref.OrderID, &ref.Amount, &ref.TotalTax, &ref.Reason, &ref.CreatedBy, &ref.ZaverRefundID, &ref.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		refunds = append(refunds, &ref)
		byID[ref.ID] = &ref
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refunds: %w", err)
	}
	if len(refunds) == 0 {
		return nil, nil
	}

	lineRows, err := r.db.Query(ctx, selectRefundLinesQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refund lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			refundID, kind string
			f              domain.LineFields
		)
		if err := lineRows.Scan(&refundID, &f.ID, &kind, &f.Name, &f.Quantity, &f.Amount, &f.Tax, &f.TaxRatePercent, &f.Reference); err != nil {
			return nil, fmt.Errorf("scan refund line: %w", err)
		}
		f.Kind = domain.LineKind(kind)
		l, err := f.Line()
		if err != nil {
			return nil, fmt.Errorf("refund line %s: %w", f.ID, err)
		}
		if ref, ok := byID[refundID]; ok {
			ref.Lines = append(ref.Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund lines: %w", err)
	}
	return refunds, nil
}

// SavePayment stores the payment record and provider line item ids in one
// transaction.
func (r *OrderRepository) SavePayment(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "SavePayment", savePaymentQuery)
	defer func() { end(err) }()

	if o.Payment == nil {
		return apperrors.InvalidInput("order has no payment record")
	}
	record, err := json.Marshal(o.Payment)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", domain.MetaPaymentRecord, err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save payment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o.UpdatedAt = time.Now().UTC()
	ct, err := tx.Exec(ctx, savePaymentQuery, o.ID, record, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save payment record: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}

	for _, l := range o.Lines {
		b := l.Base()
		if b.ZaverLineItemID == "" {
			continue
		}
		if _, err = tx.Exec(ctx, saveLineItemIDQuery, o.ID, b.ID, b.ZaverLineItemID); err != nil {
			return fmt.Errorf("save line item id for line %s: %w", b.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save payment: %w", err)
	}
	return nil
}

// MarkPaid sets the order to processing with the given transaction id. The
// paid_at guard makes a second call a no-op that returns false.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, transactionID string, paidAt time.Time) (applied bool, err error) {
	ctx, end := database.TraceQuery(ctx, "MarkPaid", markPaidQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, markPaidQuery, orderID, domain.OrderStatusProcessing, transactionID, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateStatus changes the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, status string) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", updateStatusQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, updateStatusQuery, orderID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}
	return nil
}

// AddNote appends a note to the order.
func (r *OrderRepository) AddNote(ctx context.Context, orderID, content string) (note *domain.OrderNote, err error) {
	ctx, end := database.TraceQuery(ctx, "AddOrderNote", insertNoteQuery)
	defer func() { end(err) }()

	note = &domain.OrderNote{OrderID: orderID, Content: content, CreatedAt: time.Now().UTC()}
	if err = r.db.QueryRow(ctx, insertNoteQuery, orderID, content, note.CreatedAt).Scan(&note.ID); err != nil {
		return nil, fmt.Errorf("insert order note: %w", err)
	}
	return note, nil
}

// ListNotes returns the order's notes in insertion order.
func (r *OrderRepository) ListNotes(ctx context.Context, orderID string) (notes []domain.OrderNote, err error) {
	ctx, end := database.TraceQuery(ctx, "ListOrderNotes", selectNotesQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, selectNotesQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()

	notes = []domain.OrderNote{}
	for rows.Next() {
		var n domain.OrderNote
		if err = rows.Scan(&n.ID, &n.OrderID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order notes: %w", err)
	}
	return notes, nil
}

// CreateRefund inserts the refund and its lines in one transaction.
func (r *OrderRepository) CreateRefund(ctx context.Context, ref *domain.Refund) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateRefund", insertRefundQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create refund: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, insertRefundQuery,
		ref.ID, ref.OrderID, ref.Amount, ref.TotalTax, ref.Reason, ref.CreatedBy, ref.CreatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("order", ref.OrderID)
		}
		return fmt.Errorf("insert refund: %w", err)
	}

	for i, l := range ref.Lines {
		f := domain.Flatten(l)
		if _, err = tx.Exec(ctx, insertRefundLineQuery,
			ref.ID, f.ID, i, string(f.Kind), f.Name, f.Quantity, f.Amount, f.Tax, f.TaxRatePercent, f.Reference,
		); err != nil {
			return fmt.Errorf("insert refund line %s: %w", f.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create refund: %w", err)
	}
	return nil
}

// SaveRefund stores the refund's provider id.
func (r *OrderRepository) SaveRefund(ctx context.Context, ref *domain.Refund) (err error) {
	ctx, end := database.TraceQuery(ctx, "SaveRefund", saveRefundQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, saveRefundQuery, ref.ID, ref.ZaverRefundID)
	if err != nil {
		return fmt.Errorf("save refund: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("refund", ref.ID)
	}
	return nil
}
