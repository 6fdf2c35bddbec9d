package stock

import (
	"context"
	"fmt"
)

// Reservations translates an order's item lines into ledger operations and
// exposes the effective-stock view used while a draft order is being edited.
type Reservations struct {
	ledger Ledger
}

// NewReservations creates a reservation manager over the given ledger.
func NewReservations(ledger Ledger) *Reservations {
	return &Reservations{ledger: ledger}
}

// EffectiveStock returns the quantity a draft editor should display for ref:
// the committed ledger quantity plus whatever the draft itself already holds
// of that variant. The draft's own reservation has already been subtracted
// from the ledger, so without the correction the editor would see a false
// "out of stock" for units it is holding.
//
// The read is not transactional; minor staleness is acceptable for a UI hint.
func (r *Reservations) EffectiveStock(ctx context.Context, ref VariantRef, draft []Line) (int, error) {
	qty, err := r.ledger.Quantity(ctx, ref)
	if err != nil {
		return 0, err
	}
	for _, line := range draft {
		if line.Ref == ref {
			qty += line.Quantity
		}
	}
	return qty, nil
}

// Reserve holds stock for every line by decrementing the ledger inside tx.
// Duplicate refs are coalesced first so the row lock is taken once per
// variant. The first failing adjustment aborts the whole call; the caller's
// transaction rollback guarantees no partial reservation is left applied.
func (r *Reservations) Reserve(ctx context.Context, tx Tx, lines []Line) error {
	for _, line := range coalesce(lines) {
		if _, err := r.ledger.Adjust(ctx, tx, line.Ref, -line.Quantity, ReasonReserve); err != nil {
			return fmt.Errorf("reserve %s: %w", line.Ref, err)
		}
	}
	return nil
}

// Release returns previously held stock to the ledger. The lines must be the
// order's own stored item list; callers never reconstruct them from guesses.
func (r *Reservations) Release(ctx context.Context, tx Tx, lines []Line) error {
	for _, line := range coalesce(lines) {
		if _, err := r.ledger.Adjust(ctx, tx, line.Ref, line.Quantity, ReasonRelease); err != nil {
			return fmt.Errorf("release %s: %w", line.Ref, err)
		}
	}
	return nil
}

// coalesce merges lines sharing a variant into a single line, preserving the
// first-seen order of variants.
func coalesce(lines []Line) []Line {
	idx := make(map[VariantRef]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := idx[line.Ref]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		idx[line.Ref] = len(out)
		out = append(out, line)
	}
	return out
}
