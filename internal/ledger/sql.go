package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/repository"
)

const runColumns = `id, receipt_id, owner, document_url, delivery_id, status, iterations, cause, started_at, updated_at, finished_at`

type sqlStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQL returns a Store backed by the runs and run_ledger tables.
// Statements are portable between PostgreSQL and SQLite.
func NewSQL(db *sql.DB) Store {
	return &sqlStore{db: db, now: time.Now}
}

func scanRun(s repository.Scanner) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	err := s.Scan(
		&r.ID,
		&r.ReceiptID,
		&r.Owner,
		&r.DocumentURL,
		&r.DeliveryID,
		&r.Status,
		&r.Iterations,
		&r.Cause,
		&r.StartedAt,
		&r.UpdatedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e     Entry
		value []byte
	)
	if err := s.Scan(&e.Key, &value, &e.UpdatedAt); err != nil {
		return e, err
	}
	e.Value = json.RawMessage(value)
	return e, nil
}

func (s *sqlStore) Begin(ctx context.Context, run Run) (*Run, bool, error) {
	now := s.now().UTC()

	q := `INSERT INTO runs (id, receipt_id, owner, document_url, delivery_id, status, iterations, cause, started_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $8)
	ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q,
		run.ID, run.ReceiptID, run.Owner, run.DocumentURL, run.DeliveryID,
		StatusRunning, run.Iterations, now,
	)
	if repository.IsForeignKeyViolation(err) {
		return nil, false, fmt.Errorf("begin run: %w", ErrUnknownReceipt)
	}
	if err != nil {
		return nil, false, fmt.Errorf("begin run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("begin run: %w", err)
	}

	stored, err := s.Find(ctx, run.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

func (s *sqlStore) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	r, err := repository.QueryOne(ctx, s.db, q, []any{id}, scanRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find run: %w", err)
	}
	return r, nil
}

func (s *sqlStore) Advance(ctx context.Context, id uuid.UUID, iterations int) error {
	q := `UPDATE runs SET iterations = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	err := repository.ExecExpectOne(ctx, s.db, q, iterations, s.now().UTC(), id, StatusRunning)
	if errors.Is(err, sql.ErrNoRows) {
		return s.missOrConflict(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("advance run: %w", err)
	}
	return nil
}

func (s *sqlStore) Finish(ctx context.Context, id uuid.UUID, status Status, cause string) (*Run, error) {
	if !StatusRunning.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	q := `UPDATE runs SET status = $1, cause = $2, updated_at = $3, finished_at = $3 WHERE id = $4 AND status = $5`
	err := repository.ExecExpectOne(ctx, s.db, q, status, cause, now, id, StatusRunning)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	return s.Find(ctx, id)
}

func (s *sqlStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Find(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *sqlStore) Get(ctx context.Context, id uuid.UUID, key string) (json.RawMessage, bool, error) {
	var value []byte
	q := `SELECT value FROM run_ledger WHERE run_id = $1 AND key = $2`
	err := s.db.QueryRowContext(ctx, q, id, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get ledger %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

func (s *sqlStore) Set(ctx context.Context, id uuid.UUID, key string, value json.RawMessage) error {
	q := `INSERT INTO run_ledger (run_id, key, value, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, id, key, string(value), s.now().UTC()); err != nil {
		return fmt.Errorf("set ledger %s: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Entries(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	if _, err := s.Find(ctx, id); err != nil {
		return nil, err
	}

	q := `SELECT key, value, updated_at FROM run_ledger WHERE run_id = $1 ORDER BY key`
	entries, err := repository.QueryMany(ctx, s.db, q, []any{id}, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

func (s *sqlStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_ledger WHERE run_id = $1`, id); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, repository.ExecExpectOne(ctx, tx, `DELETE FROM runs WHERE id = $1`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
