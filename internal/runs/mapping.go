package runs

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
)

var projection = query.
	NewProjection("", "runs", "r").
	Project("id", "ID").
	Project("receipt_id", "ReceiptID").
	Project("owner", "Owner").
	Project("document_url", "DocumentURL").
	Project("delivery_id", "DeliveryID").
	Project("status", "Status").
	Project("iterations", "Iterations").
	Project("cause", "Cause").
	Project("started_at", "StartedAt").
	Project("updated_at", "UpdatedAt").
	Project("finished_at", "FinishedAt")

var defaultSort = query.SortField{
	Field:      "StartedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for run queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	ReceiptID *uuid.UUID `json:"receipt_id,omitempty"`
	Status    *string    `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ReceiptID", f.ReceiptID).
		WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if r := values.Get("receipt_id"); r != "" {
		if id, err := uuid.Parse(r); err == nil {
			f.ReceiptID = &id
		}
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	return f
}

func scanRun(s repository.Scanner) (ledger.Run, error) {
	var r ledger.Run
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
		&r.FinishedAt,
	)
	return r, err
}
