package sale

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/malinha-engine/internal/domain/customer"
	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// Sentinel errors for sale creation and order conversion.
var (
	ErrEmptyItems            = fmt.Errorf("items required")
	ErrCustomerNotAssociated = fmt.Errorf("order has no associated customer")
	ErrOrderNotHolding       = fmt.Errorf("order is not in a stock-holding state")
	ErrAlreadyConverted      = fmt.Errorf("order was already converted to a sale")
)

// ItemNotInOrderError indicates a kept-item selection references a variant or
// quantity the order does not hold.
type ItemNotInOrderError struct {
	Ref      stock.VariantRef
	Selected int
	Reserved int
}

func (e *ItemNotInOrderError) Error() string {
	return fmt.Sprintf("selection of %d× %s exceeds the order's reserved %d",
		e.Selected, e.Ref, e.Reserved)
}

// CreateRequest holds the input for a direct point-of-sale purchase.
type CreateRequest struct {
	CustomerID    string
	Items         []Item
	PaymentMethod string
	PaymentStatus string
}

// Keep selects how much of one reserved variant the customer kept.
type Keep struct {
	Ref      stock.VariantRef
	Quantity int
}

// Service coordinates sale creation so that the ledger decrement and the
// sale record (and, for conversions, the order completion) commit as one
// transaction.
type Service struct {
	db        stock.TxRunner
	sales     Repository
	orders    order.Repository
	orderSvc  *order.Service
	customers customer.Directory
	ledger    stock.Ledger
}

// NewService creates a sale Service.
func NewService(
	db stock.TxRunner,
	sales Repository,
	orders order.Repository,
	orderSvc *order.Service,
	customers customer.Directory,
	ledger stock.Ledger,
) *Service {
	return &Service{
		db:        db,
		sales:     sales,
		orders:    orders,
		orderSvc:  orderSvc,
		customers: customers,
		ledger:    ledger,
	}
}

// Create records a direct sale: each item is a permanent ledger decrement,
// applied together with the sale insert in one transaction. Insufficient
// stock on any line aborts the whole sale.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Sale, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.CustomerID == "" {
		return nil, ErrCustomerNotAssociated
	}
	if err := s.requireCustomer(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	sl := &Sale{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		Items:         req.Items,
		TotalValue:    totalValue(req.Items),
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
	}

	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		if err := s.consume(ctx, tx, req.Items); err != nil {
			return err
		}
		return s.sales.Create(ctx, tx, sl)
	})
	if err != nil {
		return nil, err
	}
	return s.sales.Get(ctx, sl.ID)
}

// Convert turns the kept subset of a holding order's items into a sale and
// returns the rest to the ledger, all in one transaction:
//
//  1. The order transitions to completed, releasing its entire original
//     reservation (ledger +kept +returned).
//  2. The sale consumes the kept quantities (ledger −kept).
//
// Net ledger effect is +returned: kept garments are permanently sold,
// returned ones go back to available stock, and the reservation is accounted
// for exactly once. The release runs first so the kept consumption draws on
// the order's own just-freed units even when nothing else is in stock. A
// failure anywhere rolls the whole conversion back.
func (s *Service) Convert(ctx context.Context, orderID string, kept []Keep) (*Sale, error) {
	var saleID string

	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		o, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.ConvertedToSale {
			return ErrAlreadyConverted
		}
		if !o.Status.Holds() {
			return ErrOrderNotHolding
		}
		if o.CustomerID == "" {
			return ErrCustomerNotAssociated
		}

		keptItems, err := partitionKept(o.Items, kept)
		if err != nil {
			return err
		}

		sl := &Sale{
			ID:            uuid.New().String(),
			CustomerID:    o.CustomerID,
			MalinhaID:     o.ID,
			Items:         keptItems,
			TotalValue:    totalValue(keptItems),
			PaymentStatus: "pending",
		}

		// Completing the order releases the full original reservation.
		if err := s.orderSvc.CompleteInTx(ctx, tx, o, "conversion"); err != nil {
			return err
		}

		// Permanent consumption of the kept garments out of the just-freed
		// stock.
		if err := s.consume(ctx, tx, keptItems); err != nil {
			return err
		}
		if err := s.sales.Create(ctx, tx, sl); err != nil {
			return err
		}
		if err := s.orders.MarkConverted(ctx, tx, o.ID); err != nil {
			return err
		}

		saleID = sl.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.sales.Get(ctx, saleID)
}

// Get returns a single sale by id.
func (s *Service) Get(ctx context.Context, id string) (*Sale, error) {
	return s.sales.Get(ctx, id)
}

// List returns all sales.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.sales.List(ctx)
}

// consume decrements the ledger for every sold line.
func (s *Service) consume(ctx context.Context, tx stock.Tx, items []Item) error {
	for _, item := range items {
		if _, err := s.ledger.Adjust(ctx, tx, item.Ref(), -item.Quantity, stock.ReasonSale); err != nil {
			return fmt.Errorf("consume %s: %w", item.Ref(), err)
		}
	}
	return nil
}

func (s *Service) requireCustomer(ctx context.Context, id string) error {
	ok, err := s.customers.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check customer %s: %w", id, err)
	}
	if !ok {
		return customer.ErrNotFound
	}
	return nil
}

// partitionKept validates the kept selection against the order's reserved
// items and builds the sale item list, carrying over prices from the order.
// Partial quantities are allowed; selecting more than reserved, or a variant
// the order does not hold, is a caller error.
func partitionKept(items []order.Item, kept []Keep) ([]Item, error) {
	reserved := make(map[stock.VariantRef]order.Item, len(items))
	for _, item := range items {
		entry, ok := reserved[item.Ref()]
		if ok {
			entry.Quantity += item.Quantity
			reserved[item.Ref()] = entry
			continue
		}
		reserved[item.Ref()] = item
	}

	if len(kept) == 0 {
		return nil, ErrEmptyItems
	}

	out := make([]Item, 0, len(kept))
	for _, k := range kept {
		src, ok := reserved[k.Ref]
		if !ok || k.Quantity > src.Quantity || k.Quantity <= 0 {
			avail := 0
			if ok {
				avail = src.Quantity
			}
			return nil, &ItemNotInOrderError{Ref: k.Ref, Selected: k.Quantity, Reserved: avail}
		}
		out = append(out, Item{
			ProductID: src.ProductID,
			Color:     src.Color,
			Size:      src.Size,
			Quantity:  k.Quantity,
			Price:     src.Price,
			CostPrice: src.CostPrice,
		})
		// Guard against the same variant selected twice.
		src.Quantity -= k.Quantity
		reserved[k.Ref] = src
	}
	return out, nil
}

func totalValue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}
