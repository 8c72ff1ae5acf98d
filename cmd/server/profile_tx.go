package main

import (
	"context"
	"database/sql"
	"time"

	"profilereg/internal/profile/service"
	"profilereg/internal/profile/store"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	txcontext "profilereg/pkg/platform/tx"
)

// profilePostgresTx runs each account's operation in a database transaction
// holding a transaction-scoped advisory lock on the account, so replicas
// sharing the database serialize the same way a single process does.
type profilePostgresTx struct {
	db      *sql.DB
	store   *store.PostgresStore
	timeout time.Duration
}

func newProfilePostgresTx(db *sql.DB, pgStore *store.PostgresStore) *profilePostgresTx {
	return &profilePostgresTx{db: db, store: pgStore, timeout: service.DefaultTxTimeout}
}

func (t *profilePostgresTx) RunInTx(ctx context.Context, account id.AccountID, fn func(ctx context.Context, store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := txcontext.Run(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, account.String()); err != nil {
			return err
		}
		return fn(ctx, t.store)
	})
	if err != nil && ctx.Err() != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
	}
	return err
}
