// Package inference adapts document-understanding models to receipt
// extraction. A Gateway sends one request per Extract call and never
// retries; retry policy belongs to the caller.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/JaimeStill/receipts/internal/prompts"
	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/formatting"
)

// Gateway extracts structured receipt fields from a PDF reachable at documentURL.
// Every returned error is an *ExtractionError.
type Gateway interface {
	Extract(ctx context.Context, documentURL string) (*receipts.Fields, error)
}

// Request is a single model invocation.
type Request struct {
	DocumentURL  string
	SystemPrompt string
	Prompt       string
}

// Model issues one generation request against a provider and returns the
// raw text output.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// InstructionSource resolves the effective instructions and output spec for a stage.
type InstructionSource interface {
	Instructions(ctx context.Context, stage prompts.Stage) (string, error)
	Spec(ctx context.Context, stage prompts.Stage) (string, error)
}

const userPrompt = "Extract the receipt data from the attached PDF document."

var refusalPattern = regexp.MustCompile(`(?i)^\s*(i'?m sorry|i cannot|i can'?t|i am unable|i'?m unable|as an ai)`)

type gateway struct {
	model   Model
	prompts InstructionSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway wraps model as a Gateway. A zero timeout leaves the caller's
// deadline in effect.
func NewGateway(model Model, source InstructionSource, timeout time.Duration, logger *slog.Logger) Gateway {
	return &gateway{
		model:   model,
		prompts: source,
		timeout: timeout,
		logger:  logger.With("system", "inference", "provider", model.Name()),
	}
}

func (g *gateway) Extract(ctx context.Context, documentURL string) (*receipts.Fields, error) {
	system, err := g.systemPrompt(ctx)
	if err != nil {
		return nil, &ExtractionError{Kind: KindUnavailable, Message: "load extraction prompt", Err: err}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.model.Generate(ctx, Request{
		DocumentURL:  documentURL,
		SystemPrompt: system,
		Prompt:       userPrompt,
	})
	if err != nil {
		ee := classify(err)
		g.logger.WarnContext(ctx, "extraction failed",
			"kind", ee.Kind,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, ee
	}

	fields, ee := parseFields(out)
	if ee != nil {
		g.logger.WarnContext(ctx, "extraction output rejected", "kind", ee.Kind)
		return nil, ee
	}

	g.logger.InfoContext(ctx, "extraction complete",
		"items", len(fields.Items),
		"flags", len(fields.Flags),
		"duration", time.Since(start),
	)
	return fields, nil
}

func (g *gateway) systemPrompt(ctx context.Context) (string, error) {
	instructions, err := g.prompts.Instructions(ctx, prompts.StageExtract)
	if err != nil {
		return "", err
	}
	spec, err := g.prompts.Spec(ctx, prompts.StageExtract)
	if err != nil {
		return "", err
	}
	return prompts.Compose(instructions, spec), nil
}

func parseFields(out string) (*receipts.Fields, *ExtractionError) {
	if strings.TrimSpace(out) == "" {
		return nil, &ExtractionError{Kind: KindEmpty, Message: "inference provider returned no content", Err: formatting.ErrEmptyContent}
	}

	if refusalPattern.MatchString(out) {
		return nil, &ExtractionError{Kind: KindRefused, Message: "inference provider refused the document", Err: ErrRefused}
	}

	fields, err := formatting.Parse[receipts.Fields](out)
	if err != nil {
		return nil, &ExtractionError{Kind: KindMalformed, Message: "inference output is not valid receipt JSON", Err: err}
	}

	normalize(&fields)

	if fields.IsEmpty() {
		return nil, &ExtractionError{Kind: KindEmpty, Message: "no receipt data found in document", Err: formatting.ErrEmptyContent}
	}

	return &fields, nil
}

// New builds the Gateway for cfg.Provider.
func New(ctx context.Context, cfg *Config, source InstructionSource, logger *slog.Logger) (Gateway, error) {
	var model Model
	switch cfg.Provider {
	case ProviderGoogle:
		m, err := newGoogle(ctx, cfg)
		if err != nil {
			return nil, err
		}
		model = m
	case ProviderOpenAI:
		model = newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	return NewGateway(model, source, cfg.TimeoutDuration(), logger), nil
}
