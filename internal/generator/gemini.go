package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/valpere/sheetmentor/internal/apperr"
)

const (
	DefaultGeminiModel      = "gemini-2.0-flash"
	DefaultGeminiAPIVersion = "v1beta"
)

// Gemini generates text through the Gemini API client. The key travels in
// the x-goog-api-key header, never in the request URL.
type Gemini struct {
	client          *genai.Client
	model           string
	maxOutputTokens int
	temperature     float64
}

func NewGemini(cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			APIVersion: DefaultGeminiAPIVersion,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "failed to create Gemini client")
	}

	return &Gemini{
		client:          client,
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     *cfg.Temperature,
	}, nil
}

func (g *Gemini) Name() string {
	return ProviderGemini
}

func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (*Result, error) {
	result := &Result{Model: g.model}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.temperature)),
		MaxOutputTokens: int32(g.maxOutputTokens),
	})
	if err != nil {
		return result, geminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return result, apperr.New(apperr.KindAPI, "No response generated from Gemini API")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}

	text, err := finish(sb.String())
	if err != nil {
		return result, err
	}
	result.Text = text
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if resp.ModelVersion != "" {
		result.Model = resp.ModelVersion
	}
	return result, nil
}

// geminiError maps client errors onto apperr kinds. Non-2xx answers keep the
// same wording as the REST providers.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError("Gemini", apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError("Gemini", apiErrPtr.Code, apiErrPtr.Message)
	}
	return apperr.Wrap(err, apperr.KindNetwork, "request failed")
}
