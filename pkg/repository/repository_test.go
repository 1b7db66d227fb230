package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JaimeStill/receipts/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

func scanItem(s repository.Scanner) (string, error) {
	var name string
	err := s.Scan(&name)
	return name, err
}

func TestMapError(t *testing.T) {
	other := errors.New("some other error")
	fk := &pgconn.PgError{Code: repository.CodeForeignKeyViolation}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("find: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: repository.CodeUniqueViolation}, errDuplicate},
		{"foreign key passes through", fk, fk},
		{"other passes through", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.in, errNotFound, errDuplicate)
			if got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCodeClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: repository.CodeForeignKeyViolation})

	if got := repository.Code(wrapped); got != repository.CodeForeignKeyViolation {
		t.Errorf("Code = %q, want %q", got, repository.CodeForeignKeyViolation)
	}
	if !repository.IsForeignKeyViolation(wrapped) {
		t.Error("IsForeignKeyViolation should see through wrapping")
	}
	if repository.IsUniqueViolation(wrapped) {
		t.Error("IsUniqueViolation should be false for a foreign key error")
	}
	if repository.Code(errors.New("plain")) != "" {
		t.Error("Code of a non-postgres error should be empty")
	}

	for _, code := range []string{repository.CodeSerializationFailure, repository.CodeDeadlockDetected} {
		if !repository.IsRetryable(&pgconn.PgError{Code: code}) {
			t.Errorf("IsRetryable(%s) = false, want true", code)
		}
	}
	if repository.IsRetryable(&pgconn.PgError{Code: repository.CodeCheckViolation}) {
		t.Error("check violation should not be retryable")
	}
}

func TestWithTxCommits(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	id, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ($1)`, "lunch")
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	name, err := repository.QueryOne(ctx, db, `SELECT name FROM items WHERE id = $1`, []any{id}, scanItem)
	if err != nil {
		t.Fatalf("QueryOne: %v", err)
	}
	if name != "lunch" {
		t.Errorf("name = %q, want lunch", name)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	calls := 0
	_, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (struct{}, error) {
		calls++
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('taxi')`); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times, want 1 for a non-retryable error", calls)
	}

	items, err := repository.QueryMany(ctx, db, `SELECT name FROM items`, nil, scanItem)
	if err != nil {
		t.Fatalf("QueryMany: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v, want none after rollback", items)
	}
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	calls := 0
	got, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (int, error) {
		calls++
		if calls == 1 {
			return 0, &pgconn.PgError{Code: repository.CodeSerializationFailure}
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got != 2 {
		t.Errorf("result = %d, want 2", got)
	}
}

func TestQueryManyEmptyIsNotNil(t *testing.T) {
	db := openDB(t)

	items, err := repository.QueryMany(context.Background(), db, `SELECT name FROM items`, nil, scanItem)
	if err != nil {
		t.Fatalf("QueryMany: %v", err)
	}
	if items == nil {
		t.Error("QueryMany returned nil, want empty slice")
	}
}

func TestExecExpectOne(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO items (id, name) VALUES (1, 'hotel')`); err != nil {
		t.Fatal(err)
	}

	if err := repository.ExecExpectOne(ctx, db, `UPDATE items SET name = 'motel' WHERE id = 1`); err != nil {
		t.Errorf("update existing: %v", err)
	}
	err := repository.ExecExpectOne(ctx, db, `UPDATE items SET name = 'motel' WHERE id = 2`)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("update missing: err = %v, want sql.ErrNoRows", err)
	}
}
