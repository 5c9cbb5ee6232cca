package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx groups statements atomically. Nested transactions are not supported.
type Tx struct {
	stmts
	tx *sql.Tx
}

// Begin starts a transaction.
func (e *Executor) Begin(ctx context.Context) (*Tx, error) {
	tx, err := e.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.fail(ctx, "begin", "", "BEGIN", err)
	}
	t := &Tx{tx: tx}
	t.stmts = stmts{
		q:       tx,
		dialect: e.dialect,
		log:     e.log,
		obs:     e.obs,
		pin: func(context.Context) (DBTX, func() error, error) {
			return tx, func() error { return nil }, nil
		},
	}
	return t, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return t.fail(context.Background(), "commit", "", "COMMIT", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return t.fail(context.Background(), "rollback", "", "ROLLBACK", err)
	}
	return nil
}

// WithTx runs fn in a transaction, committing when it returns nil and rolling
// back on error or panic. Panics are re-raised after the rollback.
func (e *Executor) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := e.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}
