package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/malinha-engine/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the full catalog with variants.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price, cost_price, stock FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var out []product.Product
	index := make(map[string]int)
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.Stock); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	variants, err := r.pool.Query(ctx, `
		SELECT id, product_id, color, size, quantity FROM variants
		ORDER BY product_id, color, size`)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	defer variants.Close()

	for variants.Next() {
		var (
			v         product.Variant
			productID string
		)
		if err := variants.Scan(&v.ID, &productID, &v.Color, &v.Size, &v.Quantity); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		if i, ok := index[productID]; ok {
			out[i].Variants = append(out[i].Variants, v)
		}
	}
	return out, variants.Err()
}

// GetByID returns one product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, price, cost_price, stock FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("querying product %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, color, size, quantity FROM variants
		WHERE product_id = $1 ORDER BY color, size`, id)
	if err != nil {
		return nil, fmt.Errorf("listing variants for %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v product.Variant
		if err := rows.Scan(&v.ID, &v.Color, &v.Size, &v.Quantity); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}
	return &p, rows.Err()
}
