package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WithTx runs fn in a transaction whose handle travels in the context.
// Nested calls reuse the outer transaction.
//
//	err := db.WithTx(ctx, func(ctx context.Context) error {
//	    _, err := db.Q(ctx).ExecContext(ctx, "DELETE FROM records WHERE collection = $1", c)
//	    return err
//	})
func (db *DB) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if db.getTx(ctx) != nil {
		return fn(ctx)
	}
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Q returns the transaction carried by ctx, or the pool
func (db *DB) Q(ctx context.Context) Querier {
	if tx := db.getTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
