package receipts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/storage"
	"github.com/JaimeStill/receipts/workflow"
)

// System defines the public contract for receipt operations. Every
// operation is scoped to owner: a receipt belonging to someone else
// fails with ErrUnauthorized and is left untouched.
type System interface {
	Handler(maxUploadSize int64, dispatcher Dispatcher) *Handler

	List(
		ctx context.Context,
		owner string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Receipt], error)

	Find(ctx context.Context, owner string, id uuid.UUID) (*Receipt, error)
	Create(ctx context.Context, owner string, cmd CreateCommand) (*Receipt, error)
	Reserve(ctx context.Context, owner string, cmd ReserveCommand) (*Reservation, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	DownloadURL(ctx context.Context, owner string, id uuid.UUID) (*storage.SignedURL, error)

	// Submit prepares the trigger that processes a receipt. A failed
	// receipt returns to pending; a processed one is rejected.
	Submit(ctx context.Context, owner string, id uuid.UUID) (*workflow.Trigger, error)

	// Commit stores fields and marks the receipt processed. It reports
	// committed=false without error when the receipt was already processed.
	Commit(ctx context.Context, owner string, id uuid.UUID, fields Fields) (bool, error)
	MarkFailed(ctx context.Context, owner string, id uuid.UUID, cause string) error
}

// Dispatcher hands a trigger to the workflow runner.
type Dispatcher interface {
	Dispatch(ctx context.Context, t workflow.Trigger) error
}
