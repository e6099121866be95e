// Package providertest provides a mock Provider for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/flowsmith/flowsmith/internal/provider"
)

// MockProvider is a configurable in-memory Provider implementation.
// It records every request and replays canned responses in order,
// repeating the last one when exhausted.
type MockProvider struct {
	mu        sync.Mutex
	requests  []provider.CompletionRequest
	responses []provider.CompletionResponse
	err       error

	WindowSize int
	Model      string
}

// NewMockProvider creates a mock that answers every call with the given
// responses in sequence.
func NewMockProvider(responses ...provider.CompletionResponse) *MockProvider {
	return &MockProvider{
		responses:  responses,
		WindowSize: 32000,
		Model:      "mock-model",
	}
}

// Compile-time interface check.
var _ provider.Provider = (*MockProvider)(nil)

// FailWith makes every subsequent Complete call return err.
func (m *MockProvider) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete records the request and returns the next canned response.
func (m *MockProvider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return provider.CompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return provider.CompletionResponse{Content: "ok"}, nil
	}

	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// ContextWindowSize returns the configured window size.
func (m *MockProvider) ContextWindowSize() int { return m.WindowSize }

// ModelName returns the configured model name.
func (m *MockProvider) ModelName() string { return m.Model }

// Requests returns a copy of all recorded requests.
func (m *MockProvider) Requests() []provider.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Complete calls received.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
