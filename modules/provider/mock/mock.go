// Package mock provides a deterministic offline Provider for local
// development and demos. It never calls the network.
package mock

import (
	"context"
	"fmt"

	"github.com/flowsmith/flowsmith/internal/provider"
)

// Provider is an offline LLM stand-in. It acknowledges the latest user
// message so the surrounding plumbing can be exercised end to end
// without credentials.
type Provider struct {
	model  string
	window int
}

// New creates a mock provider. model defaults to "mock" when empty.
func New(model string, contextWindow int) *Provider {
	if model == "" {
		model = "mock"
	}
	if contextWindow <= 0 {
		contextWindow = 32000
	}
	return &Provider{model: model, window: contextWindow}
}

// Complete implements provider.Provider.
func (p *Provider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == provider.MessageRoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if last == "" {
		return provider.CompletionResponse{Content: "I'm ready to help with your workflows."}, nil
	}
	return provider.CompletionResponse{
		Content: fmt.Sprintf("I understood your request: %q. Connect a real model provider to act on it.", last),
	}, nil
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int { return p.window }

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string { return p.model }

// Compile-time interface check.
var _ provider.Provider = (*Provider)(nil)
