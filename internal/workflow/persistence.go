package workflow

import (
	"context"
	"fmt"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/workflow"
)

// persist commits the extracted fields once. The receipt key is written
// before the completion signal so a completed run always reports it.
func (rt *Runtime) persist(ctx context.Context, run *ledger.Run, l *ledger.Ledger) error {
	saved, err := l.Has(ctx, workflow.KeySavedToDatabase)
	if err != nil || saved {
		return err
	}

	cached, ok, err := ledger.Load[extraction](ctx, l, workflow.KeyExtractedFields)
	if err != nil {
		return err
	}
	if !ok || cached.Fields == nil {
		return fmt.Errorf("%w: run %s", ErrMissingFields, run.ID)
	}

	if _, err := rt.Persistence.Commit(ctx, run.ReceiptID, *cached.Fields); err != nil {
		return err
	}

	if err := ledger.Save(ctx, l, workflow.KeyReceipt, run.ReceiptID); err != nil {
		return err
	}
	return ledger.Save(ctx, l, workflow.KeySavedToDatabase, true)
}
