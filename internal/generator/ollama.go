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
	DefaultOllamaModel   = "llama3.2"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// Ollama uses a local Ollama server. It needs no API key.
type Ollama struct {
	model           string
	baseURL         string
	maxOutputTokens int
	temperature     float64
	client          *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func NewOllama(cfg Config) *Ollama {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	return &Ollama{
		model:           cfg.Model,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     *cfg.Temperature,
		client:          cfg.httpClient(),
	}
}

func (o *Ollama) Name() string {
	return ProviderOllama
}

func (o *Ollama) Model() string {
	return o.model
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (*Result, error) {
	result := &Result{Model: o.model}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	reqBody := ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"num_predict": o.maxOutputTokens,
			"temperature": o.temperature,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return result, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/generate", o.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return result, apperr.Wrap(err, apperr.KindNetwork, "generation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, statusError("Ollama", resp.StatusCode, "")
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return result, apperr.Wrap(err, apperr.KindAPI, "failed to decode generation response")
	}

	text, err := finish(ollamaResp.Response)
	if err != nil {
		return result, err
	}
	result.Text = text
	result.TokensUsed = ollamaResp.PromptEvalCount + ollamaResp.EvalCount
	return result, nil
}
