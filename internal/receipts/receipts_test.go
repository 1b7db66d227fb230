package receipts_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/pagination"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from receipts.Status
		to   receipts.Status
		want bool
	}{
		{receipts.StatusPending, receipts.StatusProcessed, true},
		{receipts.StatusPending, receipts.StatusFailed, true},
		{receipts.StatusFailed, receipts.StatusPending, true},
		{receipts.StatusFailed, receipts.StatusProcessed, false},
		{receipts.StatusProcessed, receipts.StatusPending, false},
		{receipts.StatusProcessed, receipts.StatusFailed, false},
		{receipts.StatusPending, receipts.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconcileFlagsMismatches(t *testing.T) {
	var f receipts.Fields
	data := `{
		"items": [
			{"name": "Coffee", "quantity": 2, "unit_price": 3.50, "total_price": 7.00},
			{"name": "Bagel", "quantity": 3, "unit_price": 0.333, "total_price": 1.00},
			{"name": "Juice", "quantity": 1, "unit_price": 4.00, "total_price": 5.00}
		]
	}`
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	flags := f.Reconcile(receipts.DefaultTolerance)

	if len(flags) != 1 {
		t.Fatalf("flags = %d, want 1: %+v", len(flags), flags)
	}
	if flags[0].Item != 2 || flags[0].Name != "Juice" {
		t.Errorf("flagged %+v, want item 2 (Juice)", flags[0])
	}
	if !flags[0].Expected.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected = %s, want 4", flags[0].Expected)
	}
	if len(f.Flags) != 1 {
		t.Errorf("fields flags = %d, want 1", len(f.Flags))
	}
}

func TestReconcileCleanItems(t *testing.T) {
	f := receipts.Fields{
		Items: []receipts.LineItem{
			{Name: "Lunch", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("12.34"), TotalPrice: decimal.RequireFromString("12.34")},
		},
	}

	if flags := f.Reconcile(receipts.DefaultTolerance); len(flags) != 0 {
		t.Errorf("flags = %+v, want none", flags)
	}
	if f.Flags != nil {
		t.Errorf("fields flags = %+v, want nil", f.Flags)
	}
}

func TestFiltersFromQuery(t *testing.T) {
	values := url.Values{
		"status":          {"failed"},
		"merchant":        {"cafe"},
		"uploaded_after":  {"2026-02-01T00:00:00Z"},
		"uploaded_before": {"not-a-date"},
	}

	f := receipts.FiltersFromQuery(values)

	if f.Status == nil || *f.Status != "failed" {
		t.Errorf("status = %v, want failed", f.Status)
	}
	if f.Merchant == nil || *f.Merchant != "cafe" {
		t.Errorf("merchant = %v, want cafe", f.Merchant)
	}
	if f.UploadedAfter == nil || f.UploadedAfter.Month() != 2 {
		t.Errorf("uploaded_after = %v, want February", f.UploadedAfter)
	}
	if f.UploadedBefore != nil {
		t.Errorf("uploaded_before = %v, want nil for invalid date", f.UploadedBefore)
	}
	if f.Filename != nil || f.Currency != nil {
		t.Error("unset filters should be nil")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", receipts.ErrNotFound, http.StatusNotFound},
		{"unauthorized", receipts.ErrUnauthorized, http.StatusForbidden},
		{"duplicate", receipts.ErrDuplicate, http.StatusConflict},
		{"invalid status", fmt.Errorf("%w: x", receipts.ErrInvalidStatus), http.StatusConflict},
		{"too large", receipts.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid file", receipts.ErrInvalidFile, http.StatusBadRequest},
		{"not uploaded", receipts.ErrNotUploaded, http.StatusUnprocessableEntity},
		{"storage failure", receipts.ErrStorageFailure, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := receipts.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLookupFailureIsStorageFailure(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	sys := receipts.New(db, nil, discard(), pagination.Config{})
	ctx := context.Background()
	id := uuid.New()

	calls := map[string]func() error{
		"find": func() error {
			_, err := sys.Find(ctx, "user-1", id)
			return err
		},
		"commit": func() error {
			_, err := sys.Commit(ctx, "user-1", id, receipts.Fields{})
			return err
		},
		"mark failed": func() error {
			return sys.MarkFailed(ctx, "user-1", id, "extraction timeout")
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if !errors.Is(err, receipts.ErrStorageFailure) {
				t.Errorf("err = %v, want ErrStorageFailure", err)
			}
			if errors.Is(err, receipts.ErrNotFound) {
				t.Error("connection failure reported as not found")
			}
		})
	}
}
