package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/malinha-engine/internal/domain/stock"
)

var _ stock.Ledger = (*Ledger)(nil)

// Ledger is the PostgreSQL-backed variant stock ledger. The variant row is
// the unit of locking: Adjust takes the row lock first, so two transactions
// touching the same variant serialize regardless of which order they touch
// other rows in.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger returns a Ledger over the given pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Quantity returns the committed quantity for the variant triple. Plain
// read-committed read; used for availability display only.
func (l *Ledger) Quantity(ctx context.Context, ref stock.VariantRef) (int, error) {
	var qty int
	err := l.pool.QueryRow(ctx, `
		SELECT quantity FROM variants
		WHERE product_id = $1 AND color = $2 AND size = $3`,
		ref.ProductID, ref.Color, ref.Size,
	).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &stock.VariantNotFoundError{Ref: ref}
		}
		return 0, fmt.Errorf("query variant %s: %w", ref, err)
	}
	return qty, nil
}

// Adjust applies delta to the variant's quantity inside tx. The SELECT ...
// FOR UPDATE makes concurrent adjustments of the same variant queue behind
// each other; the non-negativity check then runs against the freshest
// committed value, never a stale read. The product aggregate moves by the
// same delta and a movement row is appended, all under the same transaction.
func (l *Ledger) Adjust(ctx context.Context, tx stock.Tx, ref stock.VariantRef, delta int, reason string) (int, error) {
	t := pgxTx(tx)

	var (
		variantID uuid.UUID
		qty       int
	)
	err := t.QueryRow(ctx, `
		SELECT id, quantity FROM variants
		WHERE product_id = $1 AND color = $2 AND size = $3
		FOR UPDATE`,
		ref.ProductID, ref.Color, ref.Size,
	).Scan(&variantID, &qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &stock.VariantNotFoundError{Ref: ref}
		}
		return 0, fmt.Errorf("lock variant %s: %w", ref, err)
	}

	next := qty + delta
	if next < 0 {
		return 0, &stock.InsufficientStockError{Ref: ref, Requested: -delta, Available: qty}
	}

	if _, err := t.Exec(ctx,
		`UPDATE variants SET quantity = $2 WHERE id = $1`,
		variantID, next,
	); err != nil {
		return 0, fmt.Errorf("update variant %s: %w", ref, err)
	}

	if _, err := t.Exec(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`,
		ref.ProductID, delta,
	); err != nil {
		return 0, fmt.Errorf("update product aggregate %s: %w", ref.ProductID, err)
	}

	if _, err := t.Exec(ctx, `
		INSERT INTO stock_movements (id, variant_id, delta, reason)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), variantID, delta, reason,
	); err != nil {
		return 0, fmt.Errorf("record movement for %s: %w", ref, err)
	}

	return next, nil
}
