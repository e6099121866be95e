// Package openaicompat provides an OpenAI-compatible LLM provider.
// It works with any API that implements the OpenAI chat completions
// interface (OpenAI itself, OpenRouter, Mistral, Groq, vLLM, LiteLLM,
// etc.) via a configurable base_url.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flowsmith/flowsmith/internal/provider"
)

// Provider is an OpenAI-compatible LLM provider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Provider from a validated config.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{
		config: cfg,
		// Response-header timeout instead of a global client timeout so
		// slow completions are bounded by the request context, not the
		// transport.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		logger: logger.With("component", "provider.openai_compatible"),
	}, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.doRequest(ctx, buildRequest(p.config.Model, p.config.MaxTokens, req))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return parseResponse(oaiResp), nil
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int {
	return p.config.ContextWindow
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(field string) error {
	return fmt.Errorf("provider.openai_compatible: %s is required", field)
}

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)
