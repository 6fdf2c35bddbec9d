// Package stocktest provides an in-memory stock.Ledger and stock.TxRunner
// with real commit/rollback semantics, for unit tests of the coordinators.
package stocktest

import (
	"context"
	"sync"

	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// Movement records one adjustment applied through the ledger, committed or
// not.
type Movement struct {
	Ref    stock.VariantRef
	Delta  int
	Reason string
}

// Ledger is an in-memory stock.Ledger. Adjustments made inside a transaction
// stay in the transaction's overlay until Commit; Rollback discards them, so
// tests observe the same all-or-nothing behavior as the Postgres ledger.
type Ledger struct {
	mu        sync.Mutex
	qty       map[stock.VariantRef]int
	Committed []Movement
}

// NewLedger creates a ledger seeded with the given quantities.
func NewLedger(seed map[stock.VariantRef]int) *Ledger {
	qty := make(map[stock.VariantRef]int, len(seed))
	for ref, q := range seed {
		qty[ref] = q
	}
	return &Ledger{qty: qty}
}

// Quantity returns the committed quantity for ref.
func (l *Ledger) Quantity(_ context.Context, ref stock.VariantRef) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.qty[ref]
	if !ok {
		return 0, &stock.VariantNotFoundError{Ref: ref}
	}
	return q, nil
}

// Adjust applies delta to ref within the transaction's overlay.
func (l *Ledger) Adjust(_ context.Context, tx stock.Tx, ref stock.VariantRef, delta int, reason string) (int, error) {
	t, ok := tx.(*memTx)
	if !ok {
		panic("stocktest: Adjust called outside an InTx transaction")
	}
	cur, found := t.staged[ref]
	if !found {
		l.mu.Lock()
		cur, found = l.qty[ref]
		l.mu.Unlock()
		if !found {
			return 0, &stock.VariantNotFoundError{Ref: ref}
		}
	}
	next := cur + delta
	if next < 0 {
		return 0, &stock.InsufficientStockError{Ref: ref, Requested: -delta, Available: cur}
	}
	t.staged[ref] = next
	t.moves = append(t.moves, Movement{Ref: ref, Delta: delta, Reason: reason})
	return next, nil
}

// InTx runs fn against a fresh overlay, committing it on success.
func (l *Ledger) InTx(ctx context.Context, fn func(tx stock.Tx) error) error {
	tx := &memTx{ledger: l, staged: make(map[stock.VariantRef]int)}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type memTx struct {
	ledger *Ledger
	staged map[stock.VariantRef]int
	moves  []Movement
}

func (t *memTx) Commit(context.Context) error {
	t.ledger.mu.Lock()
	defer t.ledger.mu.Unlock()
	for ref, q := range t.staged {
		t.ledger.qty[ref] = q
	}
	t.ledger.Committed = append(t.ledger.Committed, t.moves...)
	t.staged = make(map[stock.VariantRef]int)
	t.moves = nil
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.staged = make(map[stock.VariantRef]int)
	t.moves = nil
	return nil
}

// Snapshot returns a copy of the committed quantities.
func (l *Ledger) Snapshot() map[stock.VariantRef]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[stock.VariantRef]int, len(l.qty))
	for ref, q := range l.qty {
		out[ref] = q
	}
	return out
}
