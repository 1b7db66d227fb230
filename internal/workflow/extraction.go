package workflow

import (
	"context"
	"errors"

	"github.com/JaimeStill/receipts/internal/inference"
	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/workflow"
)

// Agent names a step the orchestrator can dispatch.
type Agent string

const (
	AgentExtraction  Agent = "extraction"
	AgentPersistence Agent = "persistence"
)

// extraction is the memoized outcome of the extraction step. Exactly one
// of Fields and Error is set.
type extraction struct {
	Fields *receipts.Fields           `json:"fields,omitempty"`
	Error  *inference.ExtractionError `json:"error,omitempty"`
}

// extract memoizes the extraction outcome in the ledger, calling the inference
// gateway at most once per run for any outcome except a transient failure.
func (rt *Runtime) extract(ctx context.Context, run *ledger.Run, l *ledger.Ledger) error {
	cached, ok, err := ledger.Load[extraction](ctx, l, workflow.KeyExtractedFields)
	if err != nil {
		return err
	}
	switch {
	case ok && cached.Error != nil:
		return cached.Error
	case ok && cached.Fields != nil:
		return nil
	}

	fields, err := rt.Inference.Extract(ctx, run.DocumentURL)
	if err != nil {
		var ee *inference.ExtractionError
		if !errors.As(err, &ee) || ee.Transient() {
			return err
		}
		if saveErr := ledger.Save(ctx, l, workflow.KeyExtractedFields, extraction{Error: ee}); saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}

	return ledger.Save(ctx, l, workflow.KeyExtractedFields, extraction{Fields: fields})
}
