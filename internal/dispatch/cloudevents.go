package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/JaimeStill/receipts/workflow"
)

// Publisher sends triggers as CloudEvents to a sink that runs the workflow.
type Publisher struct {
	client  cloudevents.Client
	sink    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher returns a Publisher targeting sink over HTTP.
func NewPublisher(sink string, timeout time.Duration, logger *slog.Logger) (*Publisher, error) {
	client, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(sink))
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}

	return &Publisher{
		client:  client,
		sink:    sink,
		timeout: timeout,
		logger:  logger.With("system", "dispatch", "mode", ModeCloudEvents),
	}, nil
}

// Dispatch publishes t and waits for the sink to acknowledge it.
func (p *Publisher) Dispatch(ctx context.Context, t workflow.Trigger) error {
	if err := t.Validate(); err != nil {
		return err
	}

	e, err := workflow.NewEvent(t)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result := p.client.Send(ctx, e)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("%w: %s: %w", ErrUndelivered, p.sink, result)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("event %s rejected by %s: %w", e.ID(), p.sink, result)
	}

	p.logger.DebugContext(ctx, "trigger published", "event_id", e.ID(), "receipt_id", t.ReceiptID)
	return nil
}
