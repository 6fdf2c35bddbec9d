// Package postgres implements the engine's storage layer on PostgreSQL via
// pgx. All ledger-affecting operations run inside serializable transactions
// provided by DB.InTx; variant rows are the unit of locking.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/malinha-engine/db"
	"github.com/xenking/malinha-engine/internal/domain/stock"
)

// maxTxRetries bounds internal retries on serialization conflicts before the
// error is surfaced to the caller as a user-visible "please retry".
const maxTxRetries = 3

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// DB wraps the pool as a stock.TxRunner.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB wraps pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

var _ stock.TxRunner = (*DB)(nil)

// InTx runs fn inside a serializable transaction, retrying up to
// maxTxRetries times when PostgreSQL aborts the transaction due to a
// serialization failure or deadlock. After exhaustion it returns
// stock.ErrTransactionConflict. Any error from fn rolls the transaction
// back verbatim.
func (d *DB) InTx(ctx context.Context, fn func(tx stock.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	}
	return errors.Wrap(stock.ErrTransactionConflict, lastErr.Error())
}

// isSerializationFailure reports whether err is a retryable transaction
// abort: 40001 (serialization_failure) or 40P01 (deadlock_detected).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// pgxTx unwraps the domain transaction handle back to pgx.Tx. All stock.Tx
// values in this process originate from DB.InTx, so the assertion is an
// invariant, not a runtime branch.
func pgxTx(tx stock.Tx) pgx.Tx {
	t, ok := tx.(pgx.Tx)
	if !ok {
		panic("postgres: stock.Tx is not a pgx.Tx")
	}
	return t
}
