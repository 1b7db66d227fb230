package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// openaiModel calls the OpenAI Responses API. The Responses API accepts
// PDFs only as inline file data, so the document is fetched from its
// URL and attached base64 encoded.
type openaiModel struct {
	client          openai.Client
	http            *http.Client
	model           string
	temperature     float64
	maxOutputTokens int64
	maxDocument     int64
}

func newOpenAI(cfg *Config) *openaiModel {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openaiModel{
		client:          openai.NewClient(opts...),
		http:            http.DefaultClient,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: int64(cfg.MaxOutputTokens),
		maxDocument:     cfg.MaxDocumentBytes(),
	}
}

func (m *openaiModel) Name() string {
	return ProviderOpenAI
}

func (m *openaiModel) Generate(ctx context.Context, req Request) (string, error) {
	data, err := m.fetch(ctx, req.DocumentURL)
	if err != nil {
		return "", err
	}

	file := responses.ResponseInputFileParam{
		Filename: openai.String(filename(req.DocumentURL)),
		FileData: openai.String("data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)),
	}

	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(m.model),
		Instructions:    openai.String(req.SystemPrompt),
		MaxOutputTokens: openai.Int(m.maxOutputTokens),
		Temperature:     openai.Float(m.temperature),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{{
				OfMessage: &responses.EasyInputMessageParam{
					Role: responses.EasyInputMessageRoleUser,
					Content: responses.EasyInputMessageContentUnionParam{
						OfInputItemContentList: []responses.ResponseInputContentUnionParam{
							{OfInputFile: &file},
							{OfInputText: &responses.ResponseInputTextParam{Text: req.Prompt}},
						},
					},
				},
			}},
		},
	}

	resp, err := m.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: ProviderOpenAI, StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", err
	}

	return resp.OutputText(), nil
}

func (m *openaiModel) fetch(ctx context.Context, documentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, &ExtractionError{Kind: KindMalformed, Message: "invalid document url", Err: err}
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "document", StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxDocument+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(data)) > m.maxDocument {
		return nil, &ExtractionError{Kind: KindMalformed, Message: "document exceeds maximum size"}
	}

	return data, nil
}

func filename(documentURL string) string {
	u, err := url.Parse(documentURL)
	if err != nil {
		return "receipt.pdf"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "receipt.pdf"
	}
	return name
}
