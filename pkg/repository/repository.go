// Package repository holds the query and transaction helpers the domain
// repositories share. Statements are written against database/sql so the
// same code runs on the pgx stdlib driver and on SQLite in tests.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/JaimeStill/receipts/pkg/retry"
)

// Querier reads rows. *sql.DB, *sql.Tx, and *sql.Conn satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor runs statements that return no rows.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is the common surface of *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one entity from a Scanner.
type ScanFunc[T any] func(Scanner) (T, error)

// txPolicy retries transactions aborted by a serialization failure or a
// deadlock. Any other error ends the transaction immediately.
var txPolicy = retry.Policy{
	MaxAttempts: 3,
	BaseWait:    20 * time.Millisecond,
	MaxWait:     200 * time.Millisecond,
	Retryable:   IsRetryable,
}

// WithTx runs fn inside a transaction and commits when fn succeeds.
// A transaction PostgreSQL aborts as retryable is replayed from the start,
// so fn must not carry side effects outside tx.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var result T
	err := retry.Do(ctx, txPolicy, func(ctx context.Context, _ int) error {
		var err error
		result, err = runTx(ctx, db, fn)
		return err
	})
	return result, err
}

func runTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}

	result, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return zero, errors.Join(err, rbErr)
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return result, nil
}

// QueryOne scans the single row query returns. A query matching nothing
// yields sql.ErrNoRows.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany scans every row query returns. The result is never nil so it
// encodes as an empty JSON array.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// ExecExpectOne runs a statement that must touch exactly one row and
// returns sql.ErrNoRows when it touched none. Guarded updates use this
// to tell a missing row from a row in the wrong state.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
