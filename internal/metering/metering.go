// Package metering records billable usage events. Recording is best
// effort: callers log failures and never roll back the action being metered.
package metering

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Kind names a metered feature.
type Kind string

// KindScan is one successfully committed receipt extraction.
const KindScan Kind = "scan"

// Event is a single usage occurrence attributed to an owner.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Owner      string    `json:"owner"`
	ReceiptID  uuid.UUID `json:"receipt_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Recorder persists usage events.
type Recorder interface {
	Record(ctx context.Context, e Event) (*Event, error)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// stamp assigns a time-ordered ULID and a timestamp when they are unset.
func stamp(e Event) Event {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	if e.ID == "" {
		entropyMu.Lock()
		e.ID = ulid.MustNew(ulid.Timestamp(e.RecordedAt), entropy).String()
		entropyMu.Unlock()
	}
	return e
}

type sqlRecorder struct {
	db *sql.DB
}

// NewSQL returns a Recorder that inserts into the usage_events table.
func NewSQL(db *sql.DB) Recorder {
	return &sqlRecorder{db: db}
}

func (r *sqlRecorder) Record(ctx context.Context, e Event) (*Event, error) {
	e = stamp(e)
	q := `INSERT INTO usage_events (id, kind, owner, receipt_id, recorded_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, q, e.ID, e.Kind, e.Owner, e.ReceiptID, e.RecordedAt); err != nil {
		return nil, fmt.Errorf("record %s event: %w", e.Kind, err)
	}
	return &e, nil
}

type logRecorder struct {
	logger *slog.Logger
}

// NewLog returns a Recorder that writes events to logger only.
func NewLog(logger *slog.Logger) Recorder {
	return &logRecorder{logger: logger.With("system", "metering")}
}

func (r *logRecorder) Record(ctx context.Context, e Event) (*Event, error) {
	e = stamp(e)
	r.logger.InfoContext(ctx, "usage event",
		"id", e.ID,
		"kind", e.Kind,
		"owner", e.Owner,
		"receipt_id", e.ReceiptID,
	)
	return &e, nil
}
