// Package sale implements permanent sales: direct point-of-sale purchases
// and conversions of malinha orders into sales.
package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// ErrNotFound is returned when a requested sale does not exist.
var ErrNotFound = errors.New("sale not found")

// Sale is an immutable record of sold garments. Creating a sale is a
// permanent stock decrement; sales are never edited through this engine.
type Sale struct {
	ID            string
	CustomerID    string
	MalinhaID     string // originating order, empty for direct sales
	Items         []Item
	TotalValue    decimal.Decimal
	PaymentMethod string
	PaymentStatus string
	CreatedAt     time.Time
}

// Item is one sold garment line.
type Item struct {
	ProductID string          `json:"productId"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

// Ref returns the variant this item consumed.
func (i Item) Ref() stock.VariantRef {
	return stock.VariantRef{ProductID: i.ProductID, Color: i.Color, Size: i.Size}
}

// Repository defines persistence operations for sales.
type Repository interface {
	Create(ctx context.Context, tx stock.Tx, s *Sale) error
	Get(ctx context.Context, id string) (*Sale, error)
	List(ctx context.Context) ([]Sale, error)
}
