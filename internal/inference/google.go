package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// google calls Gemini through google.golang.org/genai. The document is
// passed by URI, so it must be reachable by the provider (a signed HTTPS
// URL, or a gs:// URI on the Vertex AI backend).
type google struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
}

func newGoogle(ctx context.Context, cfg *Config) (*google, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Project != "" {
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &google{
		client:          client,
		model:           cfg.Model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

func (g *google) Name() string {
	return ProviderGoogle
}

func (g *google) Generate(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{{
		Role: string(genai.RoleUser),
		Parts: []*genai.Part{
			genai.NewPartFromURI(req.DocumentURL, "application/pdf"),
			genai.NewPartFromText(req.Prompt),
		},
	}}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxOutputTokens,
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", g.mapError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrRefused, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonProhibitedContent:
			return "", fmt.Errorf("%w: finish reason %s", ErrRefused, resp.Candidates[0].FinishReason)
		}
	}

	return resp.Text(), nil
}

func (g *google) mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: ProviderGoogle, StatusCode: apiErr.Code, Err: errors.New(strings.TrimSpace(apiErr.Message))}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: ProviderGoogle, StatusCode: apiErrPtr.Code, Err: errors.New(strings.TrimSpace(apiErrPtr.Message))}
	}
	return err
}
