// Package receipts implements the receipt record store: owner-scoped
// upload, listing, status tracking, and commitment of extracted fields.
package receipts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/receipts/pkg/storage"
)

// Status is the user-visible processing state of a receipt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// CanTransitionTo reports whether a receipt may move from s to next.
// Processed is final; failed returns to pending only through Submit.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessed || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// Receipt is an uploaded receipt document and, once processed, its
// committed fields.
type Receipt struct {
	ID           uuid.UUID           `json:"id"`
	Owner        string              `json:"owner"`
	Filename     string              `json:"filename"`
	DisplayName  string              `json:"display_name"`
	ContentType  string              `json:"content_type"`
	SizeBytes    int64               `json:"size_bytes"`
	PageCount    *int                `json:"page_count"`
	StorageKey   string              `json:"storage_key"`
	Status       Status              `json:"status"`
	MerchantName *string             `json:"merchant_name"`
	Amount       decimal.NullDecimal `json:"amount"`
	Currency     *string             `json:"currency"`
	Fields       *Fields             `json:"fields,omitempty"`
	FailureCause *string             `json:"failure_cause,omitempty"`
	UploadedAt   time.Time           `json:"uploaded_at"`
	ProcessedAt  *time.Time          `json:"processed_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// CreateCommand carries an uploaded file. PageCount is extracted by the
// handler via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data        []byte
	Filename    string
	DisplayName string
	ContentType string
	PageCount   *int
}

// ReserveCommand registers a receipt whose bytes the client uploads
// directly to blob storage through a signed URL.
type ReserveCommand struct {
	Filename    string `json:"filename"`
	DisplayName string `json:"display_name"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Reservation pairs a reserved receipt with the URL its bytes go to.
type Reservation struct {
	Receipt *Receipt           `json:"receipt"`
	Upload  *storage.SignedURL `json:"upload"`
}
