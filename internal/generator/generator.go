// Package generator sends prompts to a text-generation backend and returns
// cleaned, validated text.
package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/sheetmentor/internal/apperr"
	"github.com/valpere/sheetmentor/internal/postprocess"
	"github.com/valpere/sheetmentor/internal/validator"
)

// Provider names accepted by New.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

const (
	DefaultMaxOutputTokens = 1000
	DefaultTemperature     = 0.7
	DefaultTimeout         = 60 * time.Second
)

// Generator produces text for a single prompt.
type Generator interface {
	Name() string
	// Model is the model name requests are sent to.
	Model() string
	Generate(ctx context.Context, prompt string) (*Result, error)
}

// Result is one generation. TokensUsed is zero when the backend does not
// report usage.
type Result struct {
	Text       string        `json:"text"`
	TokensUsed int           `json:"tokensUsed"`
	Model      string        `json:"model"`
	Latency    time.Duration `json:"latency"`
}

// Config configures a provider. A nil Temperature selects DefaultTemperature;
// an explicit 0 is kept.
type Config struct {
	Provider        string        `mapstructure:"provider" json:"provider"`
	APIKey          string        `mapstructure:"api_key" json:"-"`
	Model           string        `mapstructure:"model" json:"model"`
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	Temperature     *float64      `mapstructure:"temperature" json:"temperature,omitempty"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Temperature == nil {
		c.Temperature = Float64(DefaultTemperature)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Float64 returns a pointer to v, for Config.Temperature.
func Float64(v float64) *float64 {
	return &v
}

func (c Config) httpClient() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// ErrMissingAPIKey is returned by constructors of providers that need a key.
var ErrMissingAPIKey = apperr.Validation("API key is required")

// New builds the generator named by cfg.Provider. An empty provider selects
// Gemini.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGemini(cfg)
	case ProviderOpenRouter:
		return NewOpenRouter(cfg)
	case ProviderOllama:
		return NewOllama(cfg), nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown generator provider %q", cfg.Provider))
	}
}

// finish cleans raw model output and rejects blank text.
func finish(raw string) (string, error) {
	text := postprocess.Clean(raw)
	if err := validator.Validate(text); err != nil {
		return "", apperr.Wrap(err, apperr.KindAPI, "invalid response")
	}
	return text, nil
}

// statusError maps a non-200 status to a categorized error.
func statusError(provider string, status int, detail string) error {
	kind := apperr.KindAPI
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = apperr.KindAuth
	}
	msg := fmt.Sprintf("%s API returned status %d", provider, status)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return apperr.New(kind, msg)
}
