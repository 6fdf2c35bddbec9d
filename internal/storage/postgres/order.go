package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// items are serialized to a JSONB column; the item list is the reserved set,
// so it is only ever replaced as a whole.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, order_number, COALESCE(customer_id, ''), status, items,
	delivery_date, pickup_date, converted_to_sale, created_at, updated_at`

// Create persists a new order inside the caller's transaction.
func (r *OrderRepository) Create(ctx context.Context, tx stock.Tx, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var customerID *string
	if o.CustomerID != "" {
		customerID = &o.CustomerID
	}

	err = pgxTx(tx).QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, status, items, delivery_date, pickup_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING order_number`,
		o.ID, customerID, o.Status, itemsJSON, o.DeliveryDate, o.PickupDate,
	).Scan(&o.OrderNumber)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetForUpdate loads the order inside tx with a row lock, serializing
// concurrent mutations of the same order.
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx stock.Tx, id string) (*order.Order, error) {
	row := pgxTx(tx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// History returns the order's status log, oldest first.
func (r *OrderRepository) History(ctx context.Context, id string) ([]order.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, source, created_at FROM order_status_history
		WHERE order_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("listing history for order %q: %w", id, err)
	}
	defer rows.Close()

	var out []order.HistoryEntry
	for rows.Next() {
		var e order.HistoryEntry
		if err := rows.Scan(&e.Status, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateItems replaces the stored item list inside tx.
func (r *OrderRepository) UpdateItems(ctx context.Context, tx stock.Tx, id string, items []order.Item) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	return r.exec(ctx, tx, id,
		`UPDATE orders SET items = $2, updated_at = now() WHERE id = $1`, itemsJSON)
}

// UpdateStatus sets the status and appends a history entry inside tx.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx stock.Tx, id string, st order.Status, source string) error {
	if err := r.exec(ctx, tx, id,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, st); err != nil {
		return err
	}
	_, err := pgxTx(tx).Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, source)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), id, st, source)
	if err != nil {
		return fmt.Errorf("appending history for order %q: %w", id, err)
	}
	return nil
}

// UpdateDates sets delivery and pickup dates inside tx.
func (r *OrderRepository) UpdateDates(ctx context.Context, tx stock.Tx, id string, delivery, pickup *time.Time) error {
	return r.exec(ctx, tx, id,
		`UPDATE orders SET delivery_date = $2, pickup_date = $3, updated_at = now() WHERE id = $1`,
		delivery, pickup)
}

// MarkConverted flags the order as converted to a sale inside tx.
func (r *OrderRepository) MarkConverted(ctx context.Context, tx stock.Tx, id string) error {
	return r.exec(ctx, tx, id,
		`UPDATE orders SET converted_to_sale = TRUE, updated_at = now() WHERE id = $1`)
}

// Delete removes the order inside tx. History rows cascade.
func (r *OrderRepository) Delete(ctx context.Context, tx stock.Tx, id string) error {
	return r.exec(ctx, tx, id, `DELETE FROM orders WHERE id = $1`)
}

func (r *OrderRepository) exec(ctx context.Context, tx stock.Tx, id, sql string, args ...any) error {
	tag, err := pgxTx(tx).Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &itemsJSON,
		&o.DeliveryDate, &o.PickupDate, &o.ConvertedToSale, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items for order %q: %w", o.ID, err)
	}
	return &o, nil
}
