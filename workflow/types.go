package workflow

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/auth"
)

// CloudEvent attributes for upload-completed triggers.
const (
	EventUploaded = "com.receipts.uploaded"
	EventSource   = "/receipts/api"
)

// Ledger keys written by the extraction and persistence steps.
const (
	KeyExtractedFields = "extracted-fields"
	KeySavedToDatabase = "saved-to-database"
	KeyReceipt         = "receipt"
)

// Trigger starts or resumes a run. DeliveryID identifies the delivery
// (the CloudEvent id); redeliveries with the same DeliveryID resume the
// same run. When DeliveryID is empty the receipt id identifies the run.
type Trigger struct {
	DocumentURL string    `json:"document_url"`
	ReceiptID   uuid.UUID `json:"receipt_id"`
	Owner       string    `json:"owner"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
}

// Validate rejects triggers without an owner, a receipt, or a document
// URL the inference provider can dereference.
func (t Trigger) Validate() error {
	if t.Owner == "" {
		return fmt.Errorf("%w: trigger has no owner", auth.ErrUnauthenticated)
	}
	if t.ReceiptID == uuid.Nil {
		return fmt.Errorf("%w: receipt_id required", ErrInvalidTrigger)
	}

	u, err := url.Parse(t.DocumentURL)
	if err != nil {
		return fmt.Errorf("%w: document_url: %v", ErrInvalidTrigger, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "gs" {
		return fmt.Errorf("%w: document_url must be http(s) or gs, got %q", ErrInvalidTrigger, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: document_url has no host", ErrInvalidTrigger)
	}
	return nil
}

// Result is the terminal outcome of a run. Receipt is set on completion;
// Error carries the terminal cause on failure.
type Result struct {
	RunID      uuid.UUID  `json:"run_id"`
	ReceiptID  uuid.UUID  `json:"receipt_id"`
	Status     string     `json:"status"`
	Receipt    *uuid.UUID `json:"receipt,omitempty"`
	Iterations int        `json:"iterations"`
	Error      string     `json:"error,omitempty"`
	FinishedAt time.Time  `json:"finished_at"`
}
