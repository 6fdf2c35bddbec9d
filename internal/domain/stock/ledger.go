// Package stock defines the variant stock ledger: the authoritative
// per-variant quantity store and the transactional contracts every
// stock-affecting operation runs under.
package stock

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// DefaultColor is the implicit variant color for products sold without
// color/size variations ("simple goods"). Such products are stored as a
// single variant under this color so the ledger treats them uniformly.
const DefaultColor = "Padrão"

// ErrTransactionConflict signals that a serializable transaction was aborted
// by a concurrent writer and retries were exhausted. Callers should ask the
// user to retry.
var ErrTransactionConflict = errors.New("transaction conflict, please retry")

// VariantRef addresses one sellable variant of a product. Color and size are
// display attributes; storage resolves the triple to a surrogate variant id.
type VariantRef struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

func (r VariantRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.ProductID, r.Color, r.Size)
}

// Line couples a variant with a quantity, the unit of reserve and release
// operations.
type Line struct {
	Ref      VariantRef
	Quantity int
}

// VariantNotFoundError indicates the (product, color, size) triple does not
// exist in the catalog.
type VariantNotFoundError struct {
	Ref VariantRef
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found", e.Ref)
}

// InsufficientStockError indicates an adjustment would drive a variant
// quantity negative. Available reports the quantity at the moment the
// adjustment was attempted, under the row lock.
type InsufficientStockError struct {
	Ref       VariantRef
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Ref, e.Requested, e.Available)
}

// Tx is the storage transaction handle passed through ledger-affecting
// operations. It is satisfied by pgx.Tx.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxRunner executes fn inside a single serializable transaction. The runner
// owns begin/commit/rollback and retries bounded times on serialization
// conflicts before surfacing ErrTransactionConflict. Any error from fn rolls
// the transaction back, leaving no partial ledger mutation behind.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Ledger is the authoritative per-variant quantity store.
//
// Adjust applies delta (positive = release/restock, negative =
// reserve/consume) to the variant's stored quantity inside the caller's
// transaction, locking the variant row for the duration. It fails with
// *InsufficientStockError when the result would go negative and
// *VariantNotFoundError when the triple is unknown, and returns the new
// quantity. The product's denormalized aggregate stock moves by the same
// delta in the same transaction, and an audit movement row is recorded with
// the given reason.
type Ledger interface {
	Quantity(ctx context.Context, ref VariantRef) (int, error)
	Adjust(ctx context.Context, tx Tx, ref VariantRef, delta int, reason string) (int, error)
}

// Movement reasons recorded in the audit log.
const (
	ReasonReserve = "reserve"
	ReasonRelease = "release"
	ReasonSale    = "sale"
	ReasonRestock = "restock"
)
