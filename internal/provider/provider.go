// Package provider defines the boundary to the language model. The core
// treats completion as an opaque call with unspecified latency; retries,
// if any, belong to the caller.
package provider

import "context"

// Provider is the interface for communicating with an LLM.
// Concrete implementations live outside the core and typically wrap a
// vendor SDK or an HTTP completion endpoint.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	// When tools are supplied, the response may carry tool calls; their
	// names become the turn's tools-used set.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ContextWindowSize returns the maximum context window in tokens.
	ContextWindowSize() int

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
