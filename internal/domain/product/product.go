// Package product defines the catalog read model consumed by the inventory
// engine. Product and variant creation belongs to the surrounding system;
// this engine only reads variant identity and writes quantities back through
// the ledger.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog garment with its denormalized aggregate stock.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	CostPrice decimal.Decimal
	// Stock is the sum of all variant quantities, maintained by the ledger
	// on every adjustment.
	Stock    int
	Variants []Variant
}

// Variant is one (color, size) combination of a product. ID is the surrogate
// key; the color/size pair stays unique per product for ledger addressing.
type Variant struct {
	ID       string
	Color    string
	Size     string
	Quantity int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
