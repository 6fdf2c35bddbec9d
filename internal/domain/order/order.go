// Package order implements the malinha (trial bag) lifecycle: item
// reservations, status transitions, and the mutations staff apply to an
// order while it is out with a customer.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a malinha: a trial bag of garments reserved for a customer. Its
// item list is the reserved set while the order is in a stock-holding state.
type Order struct {
	ID              string
	OrderNumber     int64
	CustomerID      string
	Status          Status
	Items           []Item
	DeliveryDate    *time.Time
	PickupDate      *time.Time
	ConvertedToSale bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is one reserved garment line in an order.
type Item struct {
	ProductID string          `json:"productId"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

// Ref returns the variant this item holds stock of.
func (i Item) Ref() stock.VariantRef {
	return stock.VariantRef{ProductID: i.ProductID, Color: i.Color, Size: i.Size}
}

// Lines converts an item list into ledger reservation lines.
func Lines(items []Item) []stock.Line {
	lines := make([]stock.Line, len(items))
	for i, item := range items {
		lines[i] = stock.Line{Ref: item.Ref(), Quantity: item.Quantity}
	}
	return lines
}

// HistoryEntry is one record in an order's append-only status log.
type HistoryEntry struct {
	Status    Status
	Source    string
	CreatedAt time.Time
}

// Repository defines persistence operations for orders. Methods taking a
// stock.Tx participate in the caller's transaction; GetForUpdate locks the
// order row so concurrent mutations of the same order serialize.
type Repository interface {
	Create(ctx context.Context, tx stock.Tx, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, tx stock.Tx, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	History(ctx context.Context, id string) ([]HistoryEntry, error)

	UpdateItems(ctx context.Context, tx stock.Tx, id string, items []Item) error
	UpdateStatus(ctx context.Context, tx stock.Tx, id string, st Status, source string) error
	UpdateDates(ctx context.Context, tx stock.Tx, id string, delivery, pickup *time.Time) error
	MarkConverted(ctx context.Context, tx stock.Tx, id string) error
	Delete(ctx context.Context, tx stock.Tx, id string) error
}
