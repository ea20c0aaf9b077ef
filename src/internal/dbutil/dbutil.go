// Package dbutil contains database helpers shared by the store layer.
package dbutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/errors"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/kgtsql"
	"github.com/dee-me-tree-or-love/KGTorrent/src/internal/log"
	"go.uber.org/zap"
)

// WithTx runs cb in a transaction and commits it if cb returns nil.  Any
// error (from cb, or from commit) rolls the transaction back.
func WithTx(ctx context.Context, db *kgtsql.DB, cb func(tx *kgtsql.Tx) error) (retErr error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if retErr != nil {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Error(ctx, "transaction rollback failed", zap.Error(err))
			}
		}
	}()
	if err := cb(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// WaitUntilReady pings the database once a second until it responds or the
// context is cancelled.
func WaitUntilReady(ctx context.Context, db *kgtsql.DB) error {
	const period = time.Second
	log.Info(ctx, "waiting for db to be ready...")
	for {
		pingCtx, cancel := context.WithTimeout(ctx, period)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			log.Debug(ctx, "db is ready")
			return nil
		}
		log.Debug(ctx, "db is not ready", zap.Error(err))
		select {
		case <-time.After(period):
		case <-ctx.Done():
			return errors.EnsureStack(context.Cause(ctx))
		}
	}
}
