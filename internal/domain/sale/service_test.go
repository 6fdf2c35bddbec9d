package sale_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/malinha-engine/internal/domain/customer"
	"github.com/xenking/malinha-engine/internal/domain/order"
	"github.com/xenking/malinha-engine/internal/domain/sale"
	"github.com/xenking/malinha-engine/internal/domain/stock"
	"github.com/xenking/malinha-engine/internal/domain/stock/stocktest"
)

// --- Mock implementations ---

type memOrderRepo struct {
	orders  map[string]*order.Order
	history map[string][]order.HistoryEntry
}

func newOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:  make(map[string]*order.Order),
		history: make(map[string][]order.HistoryEntry),
	}
}

func (m *memOrderRepo) put(o *order.Order) {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	m.orders[o.ID] = &c
}

func (m *memOrderRepo) Create(_ context.Context, _ stock.Tx, o *order.Order) error {
	m.put(o)
	return nil
}

func (m *memOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	return &c, nil
}

func (m *memOrderRepo) GetForUpdate(ctx context.Context, _ stock.Tx, id string) (*order.Order, error) {
	return m.Get(ctx, id)
}

func (m *memOrderRepo) List(_ context.Context) ([]order.Order, error) { return nil, nil }

func (m *memOrderRepo) History(_ context.Context, id string) ([]order.HistoryEntry, error) {
	return m.history[id], nil
}

func (m *memOrderRepo) UpdateItems(_ context.Context, _ stock.Tx, id string, items []order.Item) error {
	m.orders[id].Items = append([]order.Item(nil), items...)
	return nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, _ stock.Tx, id string, st order.Status, source string) error {
	m.orders[id].Status = st
	m.history[id] = append(m.history[id], order.HistoryEntry{Status: st, Source: source})
	return nil
}

func (m *memOrderRepo) UpdateDates(_ context.Context, _ stock.Tx, _ string, _, _ *time.Time) error {
	return nil
}

func (m *memOrderRepo) MarkConverted(_ context.Context, _ stock.Tx, id string) error {
	m.orders[id].ConvertedToSale = true
	return nil
}

func (m *memOrderRepo) Delete(_ context.Context, _ stock.Tx, id string) error {
	delete(m.orders, id)
	return nil
}

type memSaleRepo struct {
	sales map[string]*sale.Sale
}

func newSaleRepo() *memSaleRepo {
	return &memSaleRepo{sales: make(map[string]*sale.Sale)}
}

func (m *memSaleRepo) Create(_ context.Context, _ stock.Tx, s *sale.Sale) error {
	c := *s
	c.Items = append([]sale.Item(nil), s.Items...)
	m.sales[s.ID] = &c
	return nil
}

func (m *memSaleRepo) Get(_ context.Context, id string) (*sale.Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, sale.ErrNotFound
	}
	return s, nil
}

func (m *memSaleRepo) List(_ context.Context) ([]sale.Sale, error) {
	out := make([]sale.Sale, 0, len(m.sales))
	for _, s := range m.sales {
		out = append(out, *s)
	}
	return out, nil
}

type memCustomers struct {
	ids map[string]bool
}

func (m *memCustomers) Exists(_ context.Context, id string) (bool, error) {
	return m.ids[id], nil
}

func (m *memCustomers) Get(_ context.Context, id string) (*customer.Customer, error) {
	if !m.ids[id] {
		return nil, customer.ErrNotFound
	}
	return &customer.Customer{ID: id}, nil
}

// --- Helpers ---

var (
	redM  = stock.VariantRef{ProductID: "p1", Color: "Vermelho", Size: "M"}
	blueS = stock.VariantRef{ProductID: "p1", Color: "Azul", Size: "S"}
)

type fixture struct {
	svc    *sale.Service
	ledger *stocktest.Ledger
	orders *memOrderRepo
	sales  *memSaleRepo
}

func newFixture(seed map[stock.VariantRef]int) *fixture {
	ledger := stocktest.NewLedger(seed)
	orders := newOrderRepo()
	sales := newSaleRepo()
	customers := &memCustomers{ids: map[string]bool{"c1": true}}
	orderSvc := order.NewService(ledger, orders, stock.NewReservations(ledger), nil)
	return &fixture{
		svc:    sale.NewService(ledger, sales, orders, orderSvc, customers, ledger),
		ledger: ledger,
		orders: orders,
		sales:  sales,
	}
}

func newOrderItem(ref stock.VariantRef, qty int, price string) order.Item {
	return order.Item{
		ProductID: ref.ProductID,
		Color:     ref.Color,
		Size:      ref.Size,
		Quantity:  qty,
		Price:     decimal.RequireFromString(price),
		CostPrice: decimal.RequireFromString("40.00"),
	}
}

func newSaleItem(ref stock.VariantRef, qty int, price string) sale.Item {
	return sale.Item{
		ProductID: ref.ProductID,
		Color:     ref.Color,
		Size:      ref.Size,
		Quantity:  qty,
		Price:     decimal.RequireFromString(price),
		CostPrice: decimal.RequireFromString("40.00"),
	}
}

// seedHoldingOrder stores an order that already holds its reservation. The
// ledger seed passed to newFixture must therefore be the post-reservation
// quantities.
func (f *fixture) seedHoldingOrder(customerID string, items ...order.Item) *order.Order {
	o := &order.Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     order.StatusDelivered,
		Items:      items,
	}
	f.orders.put(o)
	return o
}

// --- Direct sale tests ---

func TestCreate_ConsumesStock(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5, blueS: 3})

	sl, err := f.svc.Create(context.Background(), sale.CreateRequest{
		CustomerID: "c1",
		Items: []sale.Item{
			newSaleItem(redM, 2, "100.00"),
			newSaleItem(blueS, 1, "80.00"),
		},
		PaymentMethod: "pix",
		PaymentStatus: "paid",
	})

	require.NoError(t, err)
	assert.Empty(t, sl.MalinhaID)
	assert.Equal(t, "pix", sl.PaymentMethod)
	assert.Equal(t, "paid", sl.PaymentStatus)
	assert.True(t, decimal.RequireFromString("280.00").Equal(sl.TotalValue))

	snap := f.ledger.Snapshot()
	assert.Equal(t, 3, snap[redM])
	assert.Equal(t, 2, snap[blueS])
}

func TestCreate_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5, blueS: 0})

	_, err := f.svc.Create(context.Background(), sale.CreateRequest{
		CustomerID: "c1",
		Items: []sale.Item{
			newSaleItem(redM, 2, "100.00"),
			newSaleItem(blueS, 1, "80.00"),
		},
	})

	var insufficientErr *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, blueS, insufficientErr.Ref)

	assert.Equal(t, 5, f.ledger.Snapshot()[redM])
	assert.Empty(t, f.sales.sales)
}

func TestCreate_EmptyItems(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.Create(context.Background(), sale.CreateRequest{CustomerID: "c1"})
	require.ErrorIs(t, err, sale.ErrEmptyItems)
}

func TestCreate_NoCustomer(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})

	_, err := f.svc.Create(context.Background(), sale.CreateRequest{
		Items: []sale.Item{newSaleItem(redM, 1, "100.00")},
	})
	require.ErrorIs(t, err, sale.ErrCustomerNotAssociated)
}

func TestCreate_UnknownCustomer(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})

	_, err := f.svc.Create(context.Background(), sale.CreateRequest{
		CustomerID: "ghost",
		Items:      []sale.Item{newSaleItem(redM, 1, "100.00")},
	})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

// --- Conversion tests ---

func TestConvert_KeptSubset(t *testing.T) {
	// The order holds 1× red/M and 1× blue/S; the seed quantities are what
	// the ledger shows with that reservation already applied.
	f := newFixture(map[stock.VariantRef]int{redM: 2, blueS: 0})
	o := f.seedHoldingOrder("c1",
		newOrderItem(redM, 1, "100.00"),
		newOrderItem(blueS, 1, "80.00"),
	)

	sl, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, o.ID, sl.MalinhaID)
	assert.Equal(t, "c1", sl.CustomerID)
	require.Len(t, sl.Items, 1)
	assert.Equal(t, redM, sl.Items[0].Ref())
	assert.True(t, decimal.RequireFromString("100.00").Equal(sl.TotalValue))

	// Kept red/M: -1 by the sale, +1 by the completion release, net zero.
	// Returned blue/S: +1 back to available stock.
	snap := f.ledger.Snapshot()
	assert.Equal(t, 2, snap[redM])
	assert.Equal(t, 1, snap[blueS])

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.True(t, got.ConvertedToSale)

	history := f.orders.history[o.ID]
	require.Len(t, history, 1)
	assert.Equal(t, order.StatusCompleted, history[0].Status)
	assert.Equal(t, "conversion", history[0].Source)
}

func TestConvert_PartialQuantity(t *testing.T) {
	// Holds 3× red/M (seed is post-reservation); customer keeps 2.
	f := newFixture(map[stock.VariantRef]int{redM: 1})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 3, "100.00"))

	sl, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 2},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("200.00").Equal(sl.TotalValue))

	// -2 sold, +3 released: the one returned garment is available again.
	assert.Equal(t, 2, f.ledger.Snapshot()[redM])
}

func TestConvert_SelectionExceedsReserved(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 1, "100.00"))

	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 2},
	})

	var selectionErr *sale.ItemNotInOrderError
	require.ErrorAs(t, err, &selectionErr)
	assert.Equal(t, 2, selectionErr.Selected)
	assert.Equal(t, 1, selectionErr.Reserved)

	// Nothing happened: ledger, order, and sales are untouched.
	assert.Equal(t, 5, f.ledger.Snapshot()[redM])
	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)
	assert.False(t, got.ConvertedToSale)
	assert.Empty(t, f.sales.sales)
}

func TestConvert_VariantNotInOrder(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 1, "100.00"))

	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: blueS, Quantity: 1},
	})

	var selectionErr *sale.ItemNotInOrderError
	require.ErrorAs(t, err, &selectionErr)
	assert.Equal(t, blueS, selectionErr.Ref)
	assert.Equal(t, 0, selectionErr.Reserved)
}

func TestConvert_DuplicateSelectionRejected(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 2, "100.00"))

	// Two keeps of the same variant summing past the reservation.
	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 2},
		{Ref: redM, Quantity: 1},
	})

	var selectionErr *sale.ItemNotInOrderError
	require.ErrorAs(t, err, &selectionErr)
}

func TestConvert_EmptyKept(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 1, "100.00"))

	_, err := f.svc.Convert(context.Background(), o.ID, nil)
	require.ErrorIs(t, err, sale.ErrEmptyItems)
}

func TestConvert_AlreadyConverted(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 1, "100.00"))
	f.orders.orders[o.ID].ConvertedToSale = true

	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 1},
	})
	require.ErrorIs(t, err, sale.ErrAlreadyConverted)
}

func TestConvert_NotHolding(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("c1", newOrderItem(redM, 1, "100.00"))
	f.orders.orders[o.ID].Status = order.StatusCancelled

	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 1},
	})
	require.ErrorIs(t, err, sale.ErrOrderNotHolding)
}

func TestConvert_NoCustomer(t *testing.T) {
	f := newFixture(map[stock.VariantRef]int{redM: 5})
	o := f.seedHoldingOrder("", newOrderItem(redM, 1, "100.00"))

	_, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 1},
	})
	require.ErrorIs(t, err, sale.ErrCustomerNotAssociated)
}

func TestConvert_OrderNotFound(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.Convert(context.Background(), "missing", []sale.Keep{
		{Ref: redM, Quantity: 1},
	})
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestConvert_SplitOrderLinesCoalesce(t *testing.T) {
	// The order lists the same variant on two lines (2+1); keeping 3 is
	// valid against the combined reservation.
	f := newFixture(map[stock.VariantRef]int{redM: 0})
	o := f.seedHoldingOrder("c1",
		newOrderItem(redM, 2, "100.00"),
		newOrderItem(redM, 1, "100.00"),
	)

	sl, err := f.svc.Convert(context.Background(), o.ID, []sale.Keep{
		{Ref: redM, Quantity: 3},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("300.00").Equal(sl.TotalValue))
	// All kept: -3 sold, +3 released, net zero.
	assert.Equal(t, 0, f.ledger.Snapshot()[redM])
}
