package runs_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/runs"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/routes"
)

const schema = `
CREATE TABLE runs (
	id TEXT PRIMARY KEY,
	receipt_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	document_url TEXT NOT NULL,
	delivery_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	iterations INTEGER NOT NULL DEFAULT 0,
	cause TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);
CREATE TABLE run_ledger (
	run_id TEXT NOT NULL REFERENCES runs(id),
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, key)
);`

var pageConfig = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

type fixture struct {
	sys     runs.System
	store   ledger.Store
	receipt uuid.UUID
	mine    ledger.Run
	theirs  ledger.Run
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	ctx := context.Background()
	store := ledger.NewSQL(db)
	f := &fixture{store: store, receipt: uuid.New()}

	begin := func(owner string, receipt uuid.UUID, delivery string) ledger.Run {
		run, _, err := store.Begin(ctx, ledger.Run{
			ID:          ledger.RunID(receipt, delivery),
			ReceiptID:   receipt,
			Owner:       owner,
			DocumentURL: "https://blob.example/receipt.pdf",
			DeliveryID:  delivery,
		})
		if err != nil {
			t.Fatalf("begin run: %v", err)
		}
		return *run
	}

	f.mine = begin("user-1", f.receipt, "evt-1")
	begin("user-1", f.receipt, "evt-2")
	begin("user-1", uuid.New(), "evt-3")
	f.theirs = begin("user-2", uuid.New(), "evt-4")

	if err := store.Set(ctx, f.mine.ID, "extracted-fields", json.RawMessage(`{"fields":{}}`)); err != nil {
		t.Fatalf("set ledger entry: %v", err)
	}
	if _, err := store.Finish(ctx, f.mine.ID, ledger.StatusFailed, "extraction timeout"); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	f.sys = runs.New(db, store, discard(), pageConfig)
	return f
}

func TestList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	page := pagination.PageRequest{Page: 1, PageSize: 20}

	all, err := f.sys.List(ctx, "user-1", page, runs.Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 3 {
		t.Errorf("Total = %d, want 3", all.Total)
	}

	byReceipt, err := f.sys.List(ctx, "user-1", page, runs.Filters{ReceiptID: &f.receipt})
	if err != nil {
		t.Fatalf("List by receipt: %v", err)
	}
	if byReceipt.Total != 2 {
		t.Errorf("Total by receipt = %d, want 2", byReceipt.Total)
	}

	failed := string(ledger.StatusFailed)
	byStatus, err := f.sys.List(ctx, "user-1", page, runs.Filters{Status: &failed})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if byStatus.Total != 1 || byStatus.Data[0].ID != f.mine.ID {
		t.Errorf("List by status = %+v, want run %s", byStatus.Data, f.mine.ID)
	}
}

func TestFind(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	run, err := f.sys.Find(ctx, "user-1", f.mine.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if run.Status != ledger.StatusFailed || run.Cause != "extraction timeout" || run.FinishedAt == nil {
		t.Errorf("Find() = %+v", run)
	}

	if _, err := f.sys.Find(ctx, "user-1", f.theirs.ID); !errors.Is(err, runs.ErrUnauthorized) {
		t.Errorf("Find other owner = %v, want %v", err, runs.ErrUnauthorized)
	}
	if _, err := f.sys.Find(ctx, "user-1", uuid.New()); !errors.Is(err, runs.ErrNotFound) {
		t.Errorf("Find missing = %v, want %v", err, runs.ErrNotFound)
	}
}

func TestEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	entries, err := f.sys.Entries(ctx, "user-1", f.mine.ID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "extracted-fields" {
		t.Errorf("Entries() = %+v", entries)
	}

	if _, err := f.sys.Entries(ctx, "user-1", f.theirs.ID); !errors.Is(err, runs.ErrUnauthorized) {
		t.Errorf("Entries other owner = %v, want %v", err, runs.ErrUnauthorized)
	}
}

func serve(t *testing.T, f *fixture, method, path, subject string) *httptest.ResponseRecorder {
	t.Helper()

	h := f.sys.Handler()
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes(), h.ReceiptRoutes())

	req := httptest.NewRequest(method, path, nil)
	if subject != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{Subject: subject}))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name    string
		path    string
		subject string
		status  int
	}{
		{"list", "/runs", "user-1", http.StatusOK},
		{"list requires identity", "/runs", "", http.StatusUnauthorized},
		{"find", "/runs/" + f.mine.ID.String(), "user-1", http.StatusOK},
		{"find other owner", "/runs/" + f.theirs.ID.String(), "user-1", http.StatusForbidden},
		{"find bad id", "/runs/not-a-uuid", "user-1", http.StatusBadRequest},
		{"ledger", "/runs/" + f.mine.ID.String() + "/ledger", "user-1", http.StatusOK},
		{"receipt runs", "/receipts/" + f.receipt.String() + "/runs", "user-1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, f, "GET", tt.path, tt.subject)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestHandlerReceiptRuns(t *testing.T) {
	f := setup(t)

	rec := serve(t, f, "GET", "/receipts/"+f.receipt.String()+"/runs", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result pagination.PageResult[ledger.Run]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("Total = %d, want 2", result.Total)
	}
	for _, run := range result.Data {
		if run.ReceiptID != f.receipt {
			t.Errorf("run %s belongs to receipt %s", run.ID, run.ReceiptID)
		}
	}
}
