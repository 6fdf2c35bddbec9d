package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// Sentinel errors for order mutation validation.
var (
	ErrEmptyItems      = fmt.Errorf("items required")
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
)

// CreateRequest holds the input for assembling a new malinha.
type CreateRequest struct {
	CustomerID   string
	Items        []Item
	DeliveryDate *time.Time
	PickupDate   *time.Time
}

// Service coordinates order mutations against the reservation manager so
// that every ledger effect and the order record itself commit atomically.
type Service struct {
	db           stock.TxRunner
	orders       Repository
	reservations *stock.Reservations
	policy       TransitionPolicy
}

// NewService creates an order Service. A nil policy defaults to
// PermissivePolicy.
func NewService(db stock.TxRunner, orders Repository, reservations *stock.Reservations, policy TransitionPolicy) *Service {
	if policy == nil {
		policy = PermissivePolicy{}
	}
	return &Service{
		db:           db,
		orders:       orders,
		reservations: reservations,
		policy:       policy,
	}
}

// Create reserves stock for every item and persists the order in one
// transaction. The order starts in the pending (stock-holding) state; if any
// variant lacks stock the whole creation fails and no ledger row moves.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	o := &Order{
		ID:           uuid.New().String(),
		CustomerID:   req.CustomerID,
		Status:       StatusPending,
		Items:        req.Items,
		DeliveryDate: req.DeliveryDate,
		PickupDate:   req.PickupDate,
	}

	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		if err := s.reservations.Reserve(ctx, tx, Lines(req.Items)); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, tx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		// Initial history entry: the reservation was applied at creation.
		return s.orders.UpdateStatus(ctx, tx, o.ID, StatusPending, "create")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, o.ID)
}

// Get returns a single order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// History returns the order's append-only status log.
func (s *Service) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	return s.orders.History(ctx, id)
}

// UpdateItems replaces the order's item list. While the order holds stock,
// the old reservation is released and the new one applied inside a single
// transaction: a failure reserving the new set rolls everything back, so the
// order keeps exactly its original reservation. Orders in released states
// only have their stored list swapped.
func (s *Service) UpdateItems(ctx context.Context, id string, newItems []Item) (*Order, error) {
	if err := validateItems(newItems); err != nil {
		return nil, err
	}

	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		o, err := s.orders.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.Status.Holds() {
			if err := s.reservations.Release(ctx, tx, Lines(o.Items)); err != nil {
				return err
			}
			if err := s.reservations.Reserve(ctx, tx, Lines(newItems)); err != nil {
				return err
			}
		}
		return s.orders.UpdateItems(ctx, tx, id, newItems)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// UpdateDates sets the delivery and pickup dates. No ledger effect.
func (s *Service) UpdateDates(ctx context.Context, id string, delivery, pickup *time.Time) (*Order, error) {
	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		if _, err := s.orders.GetForUpdate(ctx, tx, id); err != nil {
			return err
		}
		return s.orders.UpdateDates(ctx, tx, id, delivery, pickup)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ChangeStatus moves the order to a new lifecycle state. Crossing from a
// holding state to a released one returns the reservation to the ledger;
// crossing back re-reserves the stored item list and fails with
// InsufficientStockError when other orders consumed the stock meanwhile, in
// which case the order stays in its prior state. Moves within one
// classification only append a history entry.
func (s *Service) ChangeStatus(ctx context.Context, id string, to Status, source string) (*Order, error) {
	if !to.Valid() {
		return nil, &InvalidTransitionError{To: to}
	}

	err := s.db.InTx(ctx, func(tx stock.Tx) error {
		o, err := s.orders.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.policy.Allowed(o.Status, to) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}
		if err := s.applyLedgerEffect(ctx, tx, o, to); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, tx, id, to, source)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// CompleteInTx transitions the order to completed as part of an enclosing
// transaction. Used by the sale conversion coordinator, which must create
// the sale and release the reservation atomically.
func (s *Service) CompleteInTx(ctx context.Context, tx stock.Tx, o *Order, source string) error {
	if !s.policy.Allowed(o.Status, StatusCompleted) {
		return &InvalidTransitionError{From: o.Status, To: StatusCompleted}
	}
	if err := s.applyLedgerEffect(ctx, tx, o, StatusCompleted); err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, tx, o.ID, StatusCompleted, source)
}

// applyLedgerEffect performs the reserve/release matching a classification
// change. Same-class moves, including re-entering a terminal state, touch no
// ledger row.
func (s *Service) applyLedgerEffect(ctx context.Context, tx stock.Tx, o *Order, to Status) error {
	switch {
	case o.Status.Holds() && !to.Holds():
		return s.reservations.Release(ctx, tx, Lines(o.Items))
	case !o.Status.Holds() && to.Holds():
		return s.reservations.Reserve(ctx, tx, Lines(o.Items))
	default:
		return nil
	}
}

// Delete removes the order. A holding order releases its reservation first,
// in the same transaction as the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.InTx(ctx, func(tx stock.Tx) error {
		o, err := s.orders.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.Status.Holds() {
			if err := s.reservations.Release(ctx, tx, Lines(o.Items)); err != nil {
				return err
			}
		}
		return s.orders.Delete(ctx, tx, id)
	})
}

// EffectiveStock exposes the reservation manager's draft-aware availability
// view for order-building UIs.
func (s *Service) EffectiveStock(ctx context.Context, ref stock.VariantRef, draft []Item) (int, error) {
	return s.reservations.EffectiveStock(ctx, ref, Lines(draft))
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}
	return nil
}
