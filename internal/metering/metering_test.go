package metering_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/receipts/internal/metering"
)

func TestSQLRecorder(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE usage_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		owner TEXT NOT NULL,
		receipt_id TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)

	rec := metering.NewSQL(db)
	receipt := uuid.New()

	first, err := rec.Record(context.Background(), metering.Event{Kind: metering.KindScan, Owner: "user-1", ReceiptID: receipt})
	require.NoError(t, err)
	second, err := rec.Record(context.Background(), metering.Event{Kind: metering.KindScan, Owner: "user-1", ReceiptID: receipt})
	require.NoError(t, err)

	_, err = ulid.Parse(first.ID)
	require.NoError(t, err)
	assert.Less(t, first.ID, second.ID)
	assert.False(t, first.RecordedAt.IsZero())

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM usage_events WHERE owner = $1 AND kind = $2`, "user-1", "scan").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := metering.NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	e, err := rec.Record(context.Background(), metering.Event{Kind: metering.KindScan, Owner: "user-2", ReceiptID: uuid.New()})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Contains(t, buf.String(), "owner=user-2")
	assert.Contains(t, buf.String(), "kind=scan")
}

func TestConfigFinalize(t *testing.T) {
	cfg := metering.Config{}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, metering.ProviderSQL, cfg.Provider)
	assert.Greater(t, cfg.TimeoutDuration().Seconds(), 0.0)

	bad := metering.Config{Provider: "stripe"}
	assert.ErrorIs(t, bad.Finalize(nil), metering.ErrUnknownProvider)

	_, err := metering.New(&metering.Config{Provider: metering.ProviderSQL}, nil, slog.Default())
	assert.Error(t, err)
}
