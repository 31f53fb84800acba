package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/solemart/marketplace-api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items, the address snapshot, and the status history are serialized to
// JSONB columns; they are value snapshots, not joinable rows.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository returns an OrderRepository using the given store.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

const orderColumns = `id, user_id, ordered_at, lines, subtotal, shipping_fee, tax, discount, total,
	shipping_address, payment_method, payment_status, status, history, cancel_reason, delivered_at, notes`

const createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	lines, address, history, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	_, err = r.store.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.OrderedAt, lines, o.Subtotal, o.ShippingFee, o.Tax, o.Discount, o.Total,
		address, string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), history,
		o.CancelReason, o.DeliveredAt, o.Notes,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.store.q(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// Update rewrites the mutable fields of an order: status, history, lines
// (line statuses mirror the order status), payment status, cancel reason,
// and the delivery timestamp.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	lines, _, history, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	tag, err := r.store.q(ctx).Exec(ctx, `UPDATE orders
		SET lines = $2, payment_status = $3, status = $4, history = $5,
			cancel_reason = $6, delivered_at = $7
		WHERE id = $1`,
		o.ID, lines, string(o.PaymentStatus), string(o.Status), history, o.CancelReason, o.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByUser returns the orders owned by one user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY ordered_at DESC`, userID)
}

// ListBySeller returns orders containing at least one line sold by the given
// seller. The JSONB containment predicate is served by the GIN index on
// lines.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]order.Order, error) {
	filter, err := json.Marshal([]map[string]string{{"sellerId": sellerID}})
	if err != nil {
		return nil, fmt.Errorf("marshaling seller filter: %w", err)
	}
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE lines @> $1 ORDER BY ordered_at DESC`, filter)
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY ordered_at DESC`)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func marshalOrderDocs(o *order.Order) (lines, address, history []byte, err error) {
	if lines, err = json.Marshal(o.Lines); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order lines: %w", err)
	}
	if address, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling shipping address: %w", err)
	}
	if history, err = json.Marshal(o.History); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling status history: %w", err)
	}
	return lines, address, history, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o             order.Order
		lines         []byte
		address       []byte
		history       []byte
		method        string
		paymentStatus string
		status        string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.OrderedAt, &lines, &o.Subtotal, &o.ShippingFee, &o.Tax,
		&o.Discount, &o.Total, &address, &method, &paymentStatus, &status, &history,
		&o.CancelReason, &o.DeliveredAt, &o.Notes)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(history, &o.History); err != nil {
		return nil, fmt.Errorf("unmarshaling status history: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	return &o, nil
}
