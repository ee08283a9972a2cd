package database

import (
	"context"
	"database/sql"
	"fmt"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
	}
}

// SnapshotTxOptions is used by multi-query reads that must agree with each other.
func SnapshotTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelRepeatableRead,
		ReadOnly:       true,
	}
}

// WithTransaction runs fn inside a single transaction. The transaction is rolled back
// when fn returns an error and committed otherwise. It never retries.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// TxRunner opens a unit of work. *Runner binds WithTransaction to a pool; tests substitute
// their own implementation.
type TxRunner interface {
	InTx(ctx context.Context, fn func(*sql.Tx) error) error
}

type Runner struct {
	DB   *sql.DB
	Opts TxOptions
}

func NewRunner(db *sql.DB, opts TxOptions) *Runner {
	return &Runner{DB: db, Opts: opts}
}

func (r *Runner) InTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return WithTransaction(ctx, r.DB, r.Opts, fn)
}
