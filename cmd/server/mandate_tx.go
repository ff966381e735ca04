package main

import (
	"context"
	"database/sql"
	"time"

	mandateservice "bureau/internal/mandate/service"
	mandatestore "bureau/internal/mandate/store"
	dErrors "bureau/pkg/domain-errors"
)

const defaultMandateTxTimeout = 5 * time.Second

type mandatePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newMandatePostgresTx(db *sql.DB, timeout time.Duration) *mandatePostgresTx {
	return &mandatePostgresTx{db: db, timeout: timeout}
}

func (t *mandatePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store mandateservice.Store) error) error {
	ctx, cancel, err := txContext(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, mandatestore.NewPostgresTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

type mandateSQLiteTx struct {
	store   *mandatestore.SQLiteStore
	timeout time.Duration
}

func newMandateSQLiteTx(store *mandatestore.SQLiteStore, timeout time.Duration) *mandateSQLiteTx {
	return &mandateSQLiteTx{store: store, timeout: timeout}
}

func (t *mandateSQLiteTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store mandateservice.Store) error) error {
	ctx, cancel, err := txContext(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	return t.store.Transaction(ctx, func(tx *mandatestore.SQLiteStore) error {
		return fn(ctx, tx)
	})
}

// txContext rejects an already cancelled ctx and bounds one without a deadline.
func txContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = defaultMandateTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
