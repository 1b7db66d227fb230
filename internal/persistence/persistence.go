// Package persistence commits extracted receipt fields on behalf of the
// caller identity carried in the context and meters successful commits.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/metering"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/auth"
)

// Gateway writes workflow results to the receipt record store.
type Gateway interface {
	// Commit stores fields on the receipt and returns its owner. A usage
	// event is recorded only when this call moved the receipt to processed.
	// Errors wrap receipts.ErrNotFound, receipts.ErrUnauthorized,
	// receipts.ErrStorageFailure, or auth.ErrUnauthenticated.
	Commit(ctx context.Context, receiptID uuid.UUID, fields receipts.Fields) (string, error)
	// MarkFailed records the terminal failure cause on a pending receipt.
	MarkFailed(ctx context.Context, receiptID uuid.UUID, cause string) error
	// Wait blocks until in-flight usage events have been recorded.
	Wait()
}

type gateway struct {
	receipts receipts.System
	recorder metering.Recorder
	timeout  time.Duration
	logger   *slog.Logger
	pending  sync.WaitGroup
}

// New returns a Gateway over the receipt system. Each usage event gets
// at most timeout to record.
func New(rs receipts.System, recorder metering.Recorder, timeout time.Duration, logger *slog.Logger) Gateway {
	return &gateway{
		receipts: rs,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.With("system", "persistence"),
	}
}

func (g *gateway) Commit(ctx context.Context, receiptID uuid.UUID, fields receipts.Fields) (string, error) {
	owner := auth.Subject(ctx)
	if owner == "" {
		return "", auth.ErrUnauthenticated
	}

	committed, err := g.receipts.Commit(ctx, owner, receiptID, fields)
	if err != nil {
		return "", fmt.Errorf("commit receipt %s: %w", receiptID, err)
	}

	if committed {
		g.meter(ctx, metering.Event{
			Kind:      metering.KindScan,
			Owner:     owner,
			ReceiptID: receiptID,
		})
	}

	return owner, nil
}

func (g *gateway) MarkFailed(ctx context.Context, receiptID uuid.UUID, cause string) error {
	owner := auth.Subject(ctx)
	if owner == "" {
		return auth.ErrUnauthenticated
	}
	if err := g.receipts.MarkFailed(ctx, owner, receiptID, cause); err != nil {
		return fmt.Errorf("mark receipt %s failed: %w", receiptID, err)
	}
	return nil
}

func (g *gateway) Wait() {
	g.pending.Wait()
}

// meter records e in the background. The commit has already succeeded,
// so cancellation of ctx does not abort the event.
func (g *gateway) meter(ctx context.Context, e metering.Event) {
	ctx = context.WithoutCancel(ctx)

	g.pending.Go(func() {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		recorded, err := g.recorder.Record(ctx, e)
		if err != nil {
			g.logger.ErrorContext(ctx, "usage event not recorded",
				"kind", e.Kind,
				"owner", e.Owner,
				"receipt_id", e.ReceiptID,
				"error", err,
			)
			return
		}
		g.logger.DebugContext(ctx, "usage event recorded", "id", recorded.ID, "kind", recorded.Kind)
	})
}
