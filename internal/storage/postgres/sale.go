package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/malinha-engine/internal/domain/sale"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL. Sale items
// live in a JSONB column; sales are write-once.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

const saleColumns = `id, customer_id, COALESCE(malinha_id, ''), items,
	total_value, payment_method, payment_status, created_at`

// Create persists a new sale inside the caller's transaction.
func (r *SaleRepository) Create(ctx context.Context, tx stock.Tx, s *sale.Sale) error {
	itemsJSON, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshaling sale items: %w", err)
	}

	var malinhaID *string
	if s.MalinhaID != "" {
		malinhaID = &s.MalinhaID
	}

	_, err = pgxTx(tx).Exec(ctx, `
		INSERT INTO sales (id, customer_id, malinha_id, items, total_value, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.CustomerID, malinhaID, itemsJSON, s.TotalValue, s.PaymentMethod, s.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", s.ID, err)
	}
	return nil
}

// Get returns a single sale by id.
func (r *SaleRepository) Get(ctx context.Context, id string) (*sale.Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	return scanSale(row)
}

// List returns all sales, newest first.
func (r *SaleRepository) List(ctx context.Context) ([]sale.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var out []sale.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSale(row rowScanner) (*sale.Sale, error) {
	var (
		s         sale.Sale
		itemsJSON []byte
	)
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.MalinhaID, &itemsJSON,
		&s.TotalValue, &s.PaymentMethod, &s.PaymentStatus, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sale: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &s.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling items for sale %q: %w", s.ID, err)
	}
	return &s, nil
}
