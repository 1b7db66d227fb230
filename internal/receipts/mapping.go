package receipts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
)

var projection = query.
	NewProjection("public", "receipts", "r").
	Project("id", "ID").
	Project("owner", "Owner").
	Project("filename", "Filename").
	Project("display_name", "DisplayName").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("status", "Status").
	Project("merchant_name", "MerchantName").
	Project("amount", "Amount").
	Project("currency", "Currency").
	Project("fields", "Fields").
	Project("failure_cause", "FailureCause").
	Project("uploaded_at", "UploadedAt").
	Project("processed_at", "ProcessedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for receipt queries.
// Nil fields are ignored. Merchant and Filename use case-insensitive
// contains matching; UploadedAfter and UploadedBefore bound UploadedAt.
type Filters struct {
	Status         *string    `json:"status,omitempty"`
	Filename       *string    `json:"filename,omitempty"`
	Merchant       *string    `json:"merchant,omitempty"`
	Currency       *string    `json:"currency,omitempty"`
	UploadedAfter  *time.Time `json:"uploaded_after,omitempty"`
	UploadedBefore *time.Time `json:"uploaded_before,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Filename", f.Filename).
		WhereContains("MerchantName", f.Merchant).
		WhereEquals("Currency", f.Currency).
		WhereAfter("UploadedAt", f.UploadedAfter).
		WhereBefore("UploadedAt", f.UploadedBefore)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Dates are accepted as RFC 3339 timestamps or YYYY-MM-DD.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}
	if m := values.Get("merchant"); m != "" {
		f.Merchant = &m
	}
	if c := values.Get("currency"); c != "" {
		f.Currency = &c
	}
	f.UploadedAfter = parseTime(values.Get("uploaded_after"))
	f.UploadedBefore = parseTime(values.Get("uploaded_before"))

	return f
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func scanReceipt(s repository.Scanner) (Receipt, error) {
	var (
		r      Receipt
		fields []byte
	)
	err := s.Scan(
		&r.ID,
		&r.Owner,
		&r.Filename,
		&r.DisplayName,
		&r.ContentType,
		&r.SizeBytes,
		&r.PageCount,
		&r.StorageKey,
		&r.Status,
		&r.MerchantName,
		&r.Amount,
		&r.Currency,
		&fields,
		&r.FailureCause,
		&r.UploadedAt,
		&r.ProcessedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	if len(fields) > 0 {
		r.Fields = &Fields{}
		if err := json.Unmarshal(fields, r.Fields); err != nil {
			return r, fmt.Errorf("decode fields: %w", err)
		}
	}
	return r, nil
}
