// Package ctxengine implements token estimation and context-window
// telemetry for the conversation pipeline.
package ctxengine

import (
	"github.com/weaviate/tiktoken-go"
)

// TokenEstimator estimates the token count of a string. Implementations
// may approximate; callers must not rely on exact tokenization.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a characters-per-token ratio.
// A ratio of ~4 works well for English text. This is an approximation,
// not exact tokenization: it trades accuracy for zero dependencies and
// O(1) cost, which is sufficient for budgeting and warnings.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Compile-time interface check.
var _ TokenEstimator = (*CharEstimator)(nil)

// Estimate returns the estimated token count for the given text.
// Always rounds up to avoid underestimation.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	return int(tokens) + 1
}

// TiktokenEstimator counts tokens with a real BPE encoding. It is a
// drop-in replacement for CharEstimator when exact counts matter more
// than speed.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator creates an estimator backed by the named encoding
// (e.g. "cl100k_base"). An empty name selects cl100k_base.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Compile-time interface check.
var _ TokenEstimator = (*TiktokenEstimator)(nil)

// Estimate returns the exact token count under the configured encoding.
func (e *TiktokenEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}
