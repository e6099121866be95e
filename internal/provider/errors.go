package provider

import "errors"

// Sentinel errors returned by provider implementations. Callers classify
// failures with errors.Is; the concrete message carries the backend detail.
var (
	// ErrProviderDown indicates the backend is unreachable or returned a
	// server-side error.
	ErrProviderDown = errors.New("provider: backend unavailable")

	// ErrRateLimit indicates the backend rejected the request due to rate
	// limiting.
	ErrRateLimit = errors.New("provider: rate limited")

	// ErrContextLength indicates the request exceeded the model's context
	// window.
	ErrContextLength = errors.New("provider: context length exceeded")

	// ErrAuthentication indicates the credentials were rejected.
	ErrAuthentication = errors.New("provider: authentication failed")
)
