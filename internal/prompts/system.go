package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/pagination"
)

// System is the prompt store and the source of effective instructions
// for model calls.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error)
	Find(ctx context.Context, id uuid.UUID) (*Prompt, error)

	// Instructions returns the active override for stage, or the built-in
	// default when none is active.
	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)

	Create(ctx context.Context, cmd Command) (*Prompt, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error)
	// Delete refuses an active prompt with ErrActivePrompt.
	Delete(ctx context.Context, id uuid.UUID) error
	// Activate makes id the only active prompt for its stage.
	Activate(ctx context.Context, id uuid.UUID) (*Prompt, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error)
}
