package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/sheetmentor/internal/apperr"
)

const (
	DefaultOpenRouterModel   = "google/gemini-2.0-flash-exp:free"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouter calls an OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	temperature     float64
	client          *http.Client
}

func NewOpenRouter(cfg Config) (*OpenRouter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = DefaultOpenRouterModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	return &OpenRouter{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     *cfg.Temperature,
		client:          cfg.httpClient(),
	}, nil
}

func (s *OpenRouter) Name() string {
	return ProviderOpenRouter
}

func (s *OpenRouter) Model() string {
	return s.model
}

func (s *OpenRouter) Generate(ctx context.Context, prompt string) (*Result, error) {
	result := &Result{Model: s.model}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	reqBody := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  s.maxOutputTokens,
		"temperature": s.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/chat/completions", s.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	httpReq.Header.Set("X-Title", "sheetmentor")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return result, apperr.Wrap(err, apperr.KindNetwork, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, statusError("OpenRouter", resp.StatusCode, "")
	}

	var orResp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return result, apperr.Wrap(err, apperr.KindAPI, "failed to decode response")
	}
	if len(orResp.Choices) == 0 {
		return result, apperr.New(apperr.KindAPI, "empty response from API")
	}

	text, err := finish(orResp.Choices[0].Message.Content)
	if err != nil {
		return result, err
	}
	if orResp.Model != "" {
		result.Model = orResp.Model
	}
	result.Text = text
	result.TokensUsed = orResp.Usage.TotalTokens
	return result, nil
}
