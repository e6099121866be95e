package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowsmith/flowsmith/internal/provider"
)

// Summarizer condenses a conversation segment into a short synopsis.
// Implementations must not fail: when the primary method is unavailable
// they return a degraded summary and fromModel == false.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (text string, fromModel bool)
}

// Compile-time check that ModelSummarizer satisfies Summarizer.
var _ Summarizer = (*ModelSummarizer)(nil)

// summaryMaxTokens bounds the model's summary response.
const summaryMaxTokens = 256

const summaryInstructions = `Summarize this conversation segment in 2-3 sentences, focusing on:
- Key topics discussed
- Important decisions or outcomes
- Workflow operations performed

Reply with the summary only.`

// ModelSummarizer asks the language model for a semantic summary and
// falls back to ExtractiveSummary when the call fails.
type ModelSummarizer struct {
	provider provider.Provider
	logger   *slog.Logger
}

// NewModelSummarizer creates a summarizer backed by the given provider.
func NewModelSummarizer(p provider.Provider, logger *slog.Logger) *ModelSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSummarizer{provider: p, logger: logger.With("component", "summarizer")}
}

// Summarize returns a model-produced synopsis of the turns, or the
// extractive fallback if the model call fails or returns nothing.
func (s *ModelSummarizer) Summarize(ctx context.Context, turns []Turn) (string, bool) {
	if len(turns) == 0 {
		return "", false
	}

	var b strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&b, "Turn %d:\nUser: %s\nAgent: %s\n\n", i+1, t.UserMessage, t.AgentResponse)
	}

	resp, err := s.provider.Complete(ctx, provider.CompletionRequest{
		Instructions: summaryInstructions,
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: b.String()},
		},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		s.logger.Warn("model summarization failed, using extractive fallback", "error", err)
		return ExtractiveSummary(turns), false
	}
	return strings.TrimSpace(resp.Content), true
}

// ExtractiveSummary is the deterministic fallback: it lists the distinct
// topics found in the segment's user messages as a terse
// "Earlier topics: ..." line. It never fails.
func ExtractiveSummary(turns []Turn) string {
	var topics []string
	seen := map[string]struct{}{}
	add := func(topic string) {
		if _, dup := seen[topic]; dup {
			return
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	for _, t := range turns {
		lower := strings.ToLower(t.UserMessage)
		switch {
		case strings.Contains(lower, "create") || strings.Contains(lower, "new"):
			add("workflow creation")
		case strings.Contains(lower, "modify") || strings.Contains(lower, "change"):
			add("workflow modification")
		case strings.Contains(lower, "explain") || strings.Contains(lower, "what is"):
			add("workflow explanation")
		case strings.Contains(lower, "workflow"):
			add("workflow questions")
		case len(t.UserMessage) > 10:
			msg := t.UserMessage
			if len(msg) > 50 {
				msg = msg[:50] + "..."
			}
			add(msg)
		}
	}

	if len(topics) == 0 {
		return "Earlier topics: general discussion"
	}
	return "Earlier topics: " + strings.Join(topics, "; ")
}
