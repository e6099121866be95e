// Package conversation implements the turn lifecycle and context
// assembly for chat conversations: an in-memory turn list per
// conversation, a freshness-checked context cache, progressive
// summarization of old turns, and durable persistence.
package conversation

import "time"

// Turn is one immutable user/agent exchange.
type Turn struct {
	UserMessage   string
	AgentResponse string
	Timestamp     time.Time
	ToolsUsed     []string
}

// Summary is a condensed synopsis of a contiguous range of old turns.
// One summary is active per conversation; re-summarization replaces it.
type Summary struct {
	Text string

	// Covered turn range, half-open [StartIndex, EndIndex) into the
	// conversation's turn list at the time the summary was produced.
	StartIndex int
	EndIndex   int

	// FromModel is false when the deterministic extractive fallback
	// produced the text.
	FromModel bool

	CreatedAt time.Time
}

// Conversation is the in-memory state for one conversation id.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     []Turn
	Summary   *Summary
}
